package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/forum-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type recordingSMS struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSMS) SendSMS(_ context.Context, to, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to)
	return nil
}

func TestDispatcher_DeliversEmail(t *testing.T) {
	ml := &recordingMailer{}
	d := NewDispatcher(ml, nil, 8)

	d.Enqueue(domain.Delivery{Channel: domain.ChannelEmail, Destination: "a@x.com", Subject: "s", Body: "b"})
	d.Close()

	require.Equal(t, 1, ml.count())
	assert.Equal(t, "a@x.com", ml.sent[0])
}

func TestDispatcher_DeliversSMS(t *testing.T) {
	sms := &recordingSMS{}
	d := NewDispatcher(nil, sms, 8)

	d.Enqueue(domain.Delivery{Channel: domain.ChannelSMS, Destination: "+15550001111", Body: "code"})
	d.Close()

	sms.mu.Lock()
	defer sms.mu.Unlock()
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+15550001111", sms.sent[0])
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	ml := &recordingMailer{}
	d := NewDispatcher(ml, nil, 32)

	for i := 0; i < 10; i++ {
		d.Enqueue(domain.Delivery{Channel: domain.ChannelEmail, Destination: "a@x.com"})
	}
	d.Close()

	assert.Equal(t, 10, ml.count())
}

type blockingMailer struct {
	release chan struct{}
}

func (m *blockingMailer) SendEmail(_, _, _ string) error {
	<-m.release
	return nil
}

func TestDispatcher_EnqueueNeverBlocksWhenFull(t *testing.T) {
	bm := &blockingMailer{release: make(chan struct{})}
	d := NewDispatcher(bm, nil, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Worker is stuck on the first delivery; queue holds one more; the
		// rest must be dropped without blocking this goroutine.
		for i := 0; i < 5; i++ {
			d.Enqueue(domain.Delivery{Channel: domain.ChannelEmail, Destination: "a@x.com"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	close(bm.release)
	d.Close()
}
