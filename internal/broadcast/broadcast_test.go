package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pcarivbts/CommunityCellularManager/internal/models"
)

type tower struct {
	srv   *httptest.Server
	mu    sync.Mutex
	posts []url.Values
}

func newTower(t *testing.T, status int) *tower {
	t.Helper()
	tw := &tower{}
	tw.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/endaga_sms" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tw.mu.Lock()
		tw.posts = append(tw.posts, r.PostForm)
		tw.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(tw.srv.Close)
	return tw
}

func (tw *tower) received() []url.Values {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return append([]url.Values(nil), tw.posts...)
}

type results struct {
	mu   sync.Mutex
	errs map[string]error
	done chan struct{}
}

func (r *results) record(job Job, err error) {
	r.mu.Lock()
	r.errs[job.URL] = err
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *results) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
}

func newDispatcher(t *testing.T, cfg DispatcherConfig) (*Dispatcher, *results) {
	t.Helper()
	res := &results{errs: map[string]error{}, done: make(chan struct{}, 64)}
	cfg.OnDone = res.record
	d := NewDispatcher(cfg, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})
	return d, res
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "broadcast.db")), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func TestSendToNetworkPostsEveryReachableTower(t *testing.T) {
	db := openTestDB(t)
	a, b := newTower(t, http.StatusOK), newTower(t, http.StatusOK)
	mustCreate(t, db, &models.BTS{ID: 1, NetworkID: 5, InboundURL: a.srv.URL})
	mustCreate(t, db, &models.BTS{ID: 2, NetworkID: 5, InboundURL: b.srv.URL})
	mustCreate(t, db, &models.BTS{ID: 3, NetworkID: 5})
	mustCreate(t, db, &models.BTS{ID: 4, NetworkID: 6, InboundURL: b.srv.URL})

	d, res := newDispatcher(t, DispatcherConfig{Workers: 2})
	svc := NewService(db, d, zerolog.Nop())
	resp, err := svc.Send(context.Background(), Request{SendTo: "network", NetworkID: "5", Message: "maintenance tonight"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != "ok" || len(resp.Messages) != 1 || resp.Messages[0] != MsgSent {
		t.Fatalf("resp = %+v", resp)
	}
	res.wait(t, 2)

	for _, tw := range []*tower{a, b} {
		posts := tw.received()
		if len(posts) != 1 {
			t.Fatalf("tower got %d posts, want 1", len(posts))
		}
		p := posts[0]
		if p.Get("to") != "*" || p.Get("sender") != "0000" || p.Get("text") != "maintenance tonight" {
			t.Errorf("form = %v", p)
		}
		if p.Get("msgid") == "" {
			t.Error("msgid missing")
		}
	}

	var logs []models.BroadcastLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].NetworkID != 5 || logs[0].Text != "maintenance tonight" {
		t.Fatalf("logs = %+v", logs)
	}
	var recips []recipient
	if err := json.Unmarshal(logs[0].Recipients, &recips); err != nil || len(recips) != 2 {
		t.Fatalf("recipients = %s (%v)", logs[0].Recipients, err)
	}
}

func TestSendToTower(t *testing.T) {
	db := openTestDB(t)
	a, b := newTower(t, http.StatusOK), newTower(t, http.StatusOK)
	mustCreate(t, db, &models.BTS{ID: 1, NetworkID: 5, InboundURL: a.srv.URL})
	mustCreate(t, db, &models.BTS{ID: 2, NetworkID: 5, InboundURL: b.srv.URL})

	d, res := newDispatcher(t, DispatcherConfig{})
	svc := NewService(db, d, zerolog.Nop())
	resp, err := svc.Send(context.Background(), Request{SendTo: "tower", NetworkID: "5", TowerID: "2", Message: "hi"})
	if err != nil || resp.Status != "ok" {
		t.Fatalf("Send = %+v, %v", resp, err)
	}
	res.wait(t, 1)
	if len(a.received()) != 0 || len(b.received()) != 1 {
		t.Fatalf("posts a=%d b=%d", len(a.received()), len(b.received()))
	}
}

func TestSendToIMSI(t *testing.T) {
	db := openTestDB(t)
	tw := newTower(t, http.StatusOK)
	mustCreate(t, db, &models.BTS{ID: 1, NetworkID: 5, InboundURL: tw.srv.URL})
	mustCreate(t, db, &models.Subscriber{IMSI: "IMSI001", NetworkID: 5, BTSID: 1})
	mustCreate(t, db, &models.Number{Number: "5551000", SubscriberIMSI: "IMSI001"})
	mustCreate(t, db, &models.Number{Number: "5551001", SubscriberIMSI: "IMSI001"})
	mustCreate(t, db, &models.Subscriber{IMSI: "IMSI009", NetworkID: 6, BTSID: 1})

	d, res := newDispatcher(t, DispatcherConfig{})
	svc := NewService(db, d, zerolog.Nop())

	resp, err := svc.Send(context.Background(), Request{SendTo: "imsi", NetworkID: "5", IMSI: "IMSI001", Message: "hello"})
	if err != nil || resp.Status != "ok" {
		t.Fatalf("Send = %+v, %v", resp, err)
	}
	res.wait(t, 1)
	if posts := tw.received(); len(posts) != 1 || posts[0].Get("to") != "5551000" {
		t.Fatalf("posts = %v", posts)
	}

	resp, err = svc.Send(context.Background(), Request{SendTo: "imsi", NetworkID: "5", IMSI: "IMSI001,IMSI009,IMSI404", Message: "hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	res.wait(t, 1)
	if resp.Status != "failed" || resp.Sent != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Messages) != 1 || resp.Messages[0] != "IMSI009,IMSI404 does not exist in this network." {
		t.Fatalf("messages = %v", resp.Messages)
	}
	if got := append([]string(nil), resp.IMSI...); len(got) != 2 {
		t.Fatalf("imsi = %v", got)
	}
}

func TestSendValidation(t *testing.T) {
	db := openTestDB(t)
	d, _ := newDispatcher(t, DispatcherConfig{})
	svc := NewService(db, d, zerolog.Nop())

	cases := []struct {
		req  Request
		want string
	}{
		{Request{SendTo: "imsi", NetworkID: "5"}, MsgEnterIMSI},
		{Request{SendTo: "everyone"}, MsgInvalidData},
		{Request{}, MsgInvalidData},
	}
	for _, tc := range cases {
		resp, err := svc.Send(context.Background(), tc.req)
		if err != nil {
			t.Fatalf("Send(%+v): %v", tc.req, err)
		}
		if resp.Status != "failed" || len(resp.Messages) != 1 || resp.Messages[0] != tc.want {
			t.Errorf("Send(%+v) = %+v, want %q", tc.req, resp, tc.want)
		}
	}
}

func TestDispatcherDoesNotRetryStatusErrors(t *testing.T) {
	tw := newTower(t, http.StatusInternalServerError)
	d, res := newDispatcher(t, DispatcherConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	job := Job{URL: tw.srv.URL + "/endaga_sms", Params: url.Values{"to": {"*"}}}
	if err := d.Enqueue(job); err != nil {
		t.Fatal(err)
	}
	res.wait(t, 1)

	var statusErr *StatusError
	if err := res.errs[job.URL]; !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Fatalf("err = %v", err)
	}
	if n := len(tw.received()); n != 1 {
		t.Fatalf("attempts = %d, want 1", n)
	}
}

func TestDispatcherRetriesConnectionErrors(t *testing.T) {
	// a closed server refuses connections
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/endaga_sms"
	srv.Close()

	d, res := newDispatcher(t, DispatcherConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	if err := d.Enqueue(Job{URL: target, Params: url.Values{}}); err != nil {
		t.Fatal(err)
	}
	res.wait(t, 1)
	err := res.errs[target]
	if err == nil || !retryable(err) {
		t.Fatalf("err = %v, want a connection error", err)
	}
}

func TestDispatcherQueueBounds(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Queue: 1}, zerolog.Nop())
	if err := d.Enqueue(Job{URL: "http://tower.invalid"}); err != nil {
		t.Fatal(err)
	}
	if err := d.Enqueue(Job{URL: "http://tower.invalid"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	d.Stop()
	if err := d.Enqueue(Job{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestEnqueueAllIsAllOrNothing(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Queue: 2}, zerolog.Nop())
	if err := d.EnqueueAll([]Job{{URL: "a"}, {URL: "b"}, {URL: "c"}}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if n := len(d.jobs); n != 0 {
		t.Fatalf("queued %d jobs of a rejected batch", n)
	}
	if err := d.EnqueueAll([]Job{{URL: "a"}, {URL: "b"}}); err != nil {
		t.Fatalf("EnqueueAll: %v", err)
	}
	if n := len(d.jobs); n != 2 {
		t.Fatalf("queued %d jobs, want 2", n)
	}
}

func TestRejectedBroadcastLeavesNoTrace(t *testing.T) {
	db := openTestDB(t)
	mustCreate(t, db, &models.BTS{ID: 1, NetworkID: 5, InboundURL: "http://tower-a.invalid"})
	mustCreate(t, db, &models.BTS{ID: 2, NetworkID: 5, InboundURL: "http://tower-b.invalid"})

	// no workers, so the single slot stays taken
	d := NewDispatcher(DispatcherConfig{Queue: 1}, zerolog.Nop())
	svc := NewService(db, d, zerolog.Nop())
	_, err := svc.Send(context.Background(), Request{SendTo: "network", NetworkID: "5", Message: "maintenance tonight"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	var rows int64
	if err := db.Model(&models.BroadcastLog{}).Count(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if rows != 0 {
		t.Errorf("broadcast_log rows = %d, want 0", rows)
	}
	if n := len(d.jobs); n != 0 {
		t.Errorf("queued jobs = %d, want 0", n)
	}
}

func TestHistory(t *testing.T) {
	db := openTestDB(t)
	for i, text := range []string{"first", "second", "third"} {
		mustCreate(t, db, &models.BroadcastLog{MsgID: string(rune('a'+i)) + "-id", SendTo: "network", NetworkID: 5, Text: text, Recipients: []byte("[]")})
	}
	svc := NewService(db, NewDispatcher(DispatcherConfig{}, zerolog.Nop()), zerolog.Nop())
	logs, err := svc.History(context.Background(), 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].Text != "third" || logs[1].Text != "second" {
		t.Fatalf("history = %+v", logs)
	}
}
