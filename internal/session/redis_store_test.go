package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	if err := store.Create(ctx, newTestSession("sess-1", time.Hour)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if !mr.Exists("session:sess-1") {
		t.Fatalf("expected key session:sess-1 in redis")
	}
	if ttl := mr.TTL("session:sess-1"); ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.SessionID != "sess-1" || got.IdentityID != "scott" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestRedisStore_CreateValidates(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	if err := store.Create(ctx, Session{SessionID: "x", ExpiresAt: time.Now().Add(time.Hour)}); err == nil {
		t.Error("Create() without identity succeeded")
	}
	if err := store.Create(ctx, newTestSession("sess-old", -time.Second)); err == nil {
		t.Error("Create() with past expiry succeeded")
	}
}

func TestRedisStore_CreateRefusesExistingID(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	if err := store.Create(ctx, newTestSession("sess-1", time.Hour)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.Create(ctx, newTestSession("sess-1", time.Hour)); !errors.Is(err, ErrExists) {
		t.Fatalf("Create() duplicate error = %v, want ErrExists", err)
	}
}

func TestRedisStore_GetMissingAndExpired(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}

	_ = store.Create(ctx, newTestSession("sess-1", time.Minute))
	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(expired) error = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_TouchKeepsTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	_ = store.Create(ctx, newTestSession("sess-1", time.Hour))
	mr.FastForward(10 * time.Minute)
	before := mr.TTL("session:sess-1")

	at := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	if err := store.Touch(ctx, "sess-1", at); err != nil {
		t.Fatalf("Touch() error: %v", err)
	}

	if after := mr.TTL("session:sess-1"); after != before {
		t.Errorf("TTL after Touch = %v, want %v", after, before)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !got.LastAccessAt.Equal(at) {
		t.Errorf("LastAccessAt = %v, want %v", got.LastAccessAt, at)
	}
}

func TestRedisStore_TouchDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	_ = store.Create(ctx, newTestSession("sess-1", time.Hour))
	_ = store.Delete(ctx, "sess-1")

	if err := store.Touch(ctx, "sess-1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Touch(deleted) error = %v, want ErrNotFound", err)
	}
	if mr.Exists("session:sess-1") {
		t.Fatal("Touch recreated a deleted session")
	}
}

// beforeExec runs fn once, after WATCH and GET but before MULTI/EXEC.
type beforeExec struct {
	once sync.Once
	fn   func()
}

func (h *beforeExec) DialHook(next redis.DialHook) redis.DialHook { return next }
func (h *beforeExec) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *beforeExec) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.once.Do(h.fn)
		return next(ctx, cmds)
	}
}

func TestRedisStore_TouchLosesToConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client)

	if err := store.Create(ctx, newTestSession("sess-1", time.Hour)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	client.AddHook(&beforeExec{fn: func() { mr.Del("session:sess-1") }})

	if err := store.Touch(ctx, "sess-1", time.Now()); err != nil {
		t.Fatalf("Touch() error = %v, want nil when a delete wins", err)
	}
	if mr.Exists("session:sess-1") {
		t.Fatal("Touch recreated a session deleted during its transaction")
	}
}

func TestRedisStore_TouchLosesToConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client)

	if err := store.Create(ctx, newTestSession("sess-1", time.Hour)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	winner := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
	client.AddHook(&beforeExec{fn: func() {
		other := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		defer other.client.Close()
		if err := other.Touch(ctx, "sess-1", winner); err != nil {
			t.Errorf("concurrent Touch() error: %v", err)
		}
	}})

	if err := store.Touch(ctx, "sess-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Touch() error = %v, want nil when another write wins", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !got.LastAccessAt.Equal(winner) {
		t.Errorf("LastAccessAt = %v, want the concurrent write %v", got.LastAccessAt, winner)
	}
}

func TestRedisStore_TouchRacingDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("sess-%d", i)
		if err := store.Create(ctx, newTestSession(id, time.Hour)); err != nil {
			t.Fatalf("Create() error: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := store.Touch(ctx, id, time.Now()); err != nil && !errors.Is(err, ErrNotFound) {
					t.Errorf("Touch() error: %v", err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			if err := store.Delete(ctx, id); err != nil {
				t.Errorf("Delete() error: %v", err)
			}
		}()
		wg.Wait()

		if mr.Exists("session:" + id) {
			t.Fatalf("%s survived Delete", id)
		}
	}
}

func TestRedisStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	_ = store.Create(ctx, newTestSession("sess-1", time.Hour))
	for i := 0; i < 2; i++ {
		if err := store.Delete(ctx, "sess-1"); err != nil {
			t.Fatalf("Delete() #%d error: %v", i+1, err)
		}
	}
	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_ServerDown(t *testing.T) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisStore(client)
	mr.Close()

	if _, err := store.Get(ctx, "sess-1"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get() with server down error = %v, want a transport error", err)
	}
	if err := store.Create(ctx, newTestSession("sess-1", time.Hour)); err == nil {
		t.Error("Create() with server down succeeded")
	}
}

func TestNewStore(t *testing.T) {
	if _, err := NewStore(StoreTypeMemory); err != nil {
		t.Errorf("NewStore(memory) error = %v", err)
	}
	if _, err := NewStore(StoreTypeRedis); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewStore(redis) without client error = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewStore("etcd"); !errors.Is(err, ErrInvalidStoreType) {
		t.Errorf("NewStore(etcd) error = %v, want ErrInvalidStoreType", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store, err := NewStore(StoreTypeRedis, WithRedisClient(client), WithRedisPrefix("gate:"))
	if err != nil {
		t.Fatalf("NewStore(redis) error = %v", err)
	}
	if err := store.Create(context.Background(), newTestSession("sess-1", time.Hour)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !mr.Exists("gate:sess-1") {
		t.Error("WithRedisPrefix was not applied")
	}
}
