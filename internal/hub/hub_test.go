package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/config"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

type recorder struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recorder) Publish(subject string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}

func TestBeatPublishesServerState(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ID = 3
	cfg.Server.StartTime = 1000
	rec := &recorder{}
	c := NewClient(rec, cfg, zap.NewNop())

	if err := c.Beat(7, time.Unix(2000, 0)); err != nil {
		t.Fatalf("beat: %v", err)
	}
	if len(rec.subjects) != 1 || rec.subjects[0] != cfg.Hub.Subject {
		t.Fatalf("subjects = %v", rec.subjects)
	}
	var hb Heartbeat
	if err := msgpack.Unmarshal(rec.payloads[0], &hb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Heartbeat{ServerID: 3, Name: "Kaetram", Players: 7, StartedAt: 1000, SentAt: 2000}
	if hb != want {
		t.Fatalf("heartbeat = %+v, want %+v", hb, want)
	}
}

func TestBeatReportsPublishError(t *testing.T) {
	rec := &recorder{err: errors.New("no responders")}
	c := NewClient(rec, config.Default(), zap.NewNop())
	if err := c.Beat(0, time.Now()); err == nil {
		t.Fatal("publish error swallowed")
	}
	c.Close()
}
