// Package archive persists exported state documents in redis so a
// simulation can be restored after a restart or rolled back to a previous
// snapshot.
package archive

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

var ErrSlotNotFound = eris.New("archive slot not found")

// Archive stores exported state documents keyed by slot name under a
// namespace prefix.
type Archive struct {
	client redis.Cmdable
	prefix string
	log    zerolog.Logger
}

// Options configures an Archive.
type Options struct {
	Address   string
	Password  string
	Namespace string
}

// New connects to redis and returns an archive. The connection is not
// verified here; the first command surfaces any dial error.
func New(opts Options, log zerolog.Logger) *Archive {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
	})
	return NewWithClient(client, opts.Namespace, log)
}

// NewWithClient wraps an existing client. Used by tests to point the archive
// at miniredis.
func NewWithClient(client redis.Cmdable, namespace string, log zerolog.Logger) *Archive {
	if namespace == "" {
		namespace = "simbridge"
	}
	return &Archive{
		client: client,
		prefix: namespace + ":state:",
		log:    log,
	}
}

func (a *Archive) key(slot string) string {
	return a.prefix + slot
}

// Save stores the exported document under slot, replacing any previous
// content.
func (a *Archive) Save(ctx context.Context, slot, doc string) error {
	if err := a.client.Set(ctx, a.key(slot), doc, 0).Err(); err != nil {
		return eris.Wrap(err, "")
	}
	a.log.Debug().Str("slot", slot).Int("bytes", len(doc)).Msg("state archived")
	return nil
}

// Load returns the document stored under slot.
func (a *Archive) Load(ctx context.Context, slot string) (string, error) {
	doc, err := a.client.Get(ctx, a.key(slot)).Result()
	if eris.Is(err, redis.Nil) {
		return "", eris.Wrapf(ErrSlotNotFound, "slot %q", slot)
	}
	if err != nil {
		return "", eris.Wrap(err, "")
	}
	return doc, nil
}

// Delete removes the document stored under slot. Deleting an absent slot is
// not an error.
func (a *Archive) Delete(ctx context.Context, slot string) error {
	if err := a.client.Del(ctx, a.key(slot)).Err(); err != nil {
		return eris.Wrap(err, "")
	}
	return nil
}

// List returns the slot names currently stored, unordered.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	keys, err := a.client.Keys(ctx, a.prefix+"*").Result()
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	slots := make([]string, 0, len(keys))
	for _, k := range keys {
		slots = append(slots, k[len(a.prefix):])
	}
	return slots, nil
}
