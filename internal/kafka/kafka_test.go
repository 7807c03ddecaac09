package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConfig(t *testing.T) {
	c := NewConfig(
		WithBrokers("a:9092", "b:9092"),
		WithTopics("drift"),
		WithSyncProducer(),
		WithConsumeOldest(),
		WithConsumerGroup("repair"),
		WithRetry(7, 250*time.Millisecond),
	)

	assert.True(t, c.IsSync())
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.GetBrokers())
	assert.Equal(t, []string{"drift"}, c.GetTopics())
	assert.Equal(t, "repair", c.GetGroupID("drift"))
	assert.Equal(t, sarama.WaitForAll, c.GetConfig().Producer.RequiredAcks)
	assert.Equal(t, sarama.OffsetOldest, c.GetConfig().Consumer.Offsets.Initial)
	assert.Equal(t, 7, c.GetConfig().Producer.Retry.Max)

	assert.Equal(t, "drift", NewConfig().GetGroupID("drift"))
}

func TestEnqueuer_Sync(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "abc" {
			return errors.New("unexpected key " + string(key))
		}
		if msg.Topic != "drift" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		return nil
	})

	k := newEnqueuer(NewConfig(WithSyncProducer()), sp, nil, zap.NewNop())
	require.NoError(t, k.Enqueue(context.Background(), "drift", "abc", []byte(`{}`)))
	require.NoError(t, k.Close())
}

func TestEnqueuer_SyncFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := newEnqueuer(NewConfig(WithSyncProducer()), sp, nil, zap.NewNop())
	err := k.Enqueue(context.Background(), "drift", "abc", []byte(`{}`))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, k.Close())
}

func TestEnqueuer_Async(t *testing.T) {
	ap := mocks.NewAsyncProducer(t, nil)
	ap.ExpectInputAndSucceed()
	ap.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	k := newEnqueuer(NewConfig(), nil, ap, zap.NewNop())
	require.NoError(t, k.Enqueue(context.Background(), "drift", "a", []byte(`{}`)))
	require.NoError(t, k.Enqueue(context.Background(), "drift", "b", []byte(`{}`)))
	require.NoError(t, k.Close())
}

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string           { return "member" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) Commit()                    {}
func (s *fakeSession) Context() context.Context   { return s.ctx }

func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, md string)  {}
func (s *fakeSession) ResetOffset(topic string, partition int32, offset int64, md string) {}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, md string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "drift" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func claimOf(values ...string) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(values))
	for i, v := range values {
		ch <- &sarama.ConsumerMessage{Topic: "drift", Offset: int64(i), Value: []byte(v)}
	}
	close(ch)
	return &fakeClaim{messages: ch}
}

func TestConsumeClaim_MarksHandledMessages(t *testing.T) {
	var seen []string
	h := NewConsumerGroupHandler(func(ctx context.Context, data []byte) error {
		seen = append(seen, string(data))
		return nil
	}, zap.NewNop())

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(session, claimOf("a", "b", "c")))

	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, []int64{0, 1, 2}, session.marked)
}

func TestConsumeClaim_StopsOnHandlerError(t *testing.T) {
	boom := errors.New("index down")
	h := NewConsumerGroupHandler(func(ctx context.Context, data []byte) error {
		if string(data) == "b" {
			return boom
		}
		return nil
	}, zap.NewNop())

	session := &fakeSession{ctx: context.Background()}
	err := h.ConsumeClaim(session, claimOf("a", "b", "c"))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int64{0}, session.marked)
}

func TestConsumeClaim_RecoversPanic(t *testing.T) {
	h := NewConsumerGroupHandler(func(ctx context.Context, data []byte) error {
		panic("bad message")
	}, zap.NewNop())

	session := &fakeSession{ctx: context.Background()}
	assert.Error(t, h.ConsumeClaim(session, claimOf("a")))
	assert.Empty(t, session.marked)
}

// fakeGroup runs one claim per session against the handler it is given.
type fakeGroup struct {
	sessions atomic.Int32
	values   []string
}

func (g *fakeGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	g.sessions.Add(1)
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	_ = handler.ConsumeClaim(&fakeSession{ctx: sctx}, claimOf(g.values...))
	return nil
}

func (g *fakeGroup) Errors() <-chan error                 { return nil }
func (g *fakeGroup) Close() error                         { return nil }
func (g *fakeGroup) Pause(partitions map[string][]int32)  {}
func (g *fakeGroup) Resume(partitions map[string][]int32) {}
func (g *fakeGroup) PauseAll()                            {}
func (g *fakeGroup) ResumeAll()                           {}

func newTestDequeuer(g sarama.ConsumerGroup, backoff time.Duration) *KafkaDequeuer {
	return &KafkaDequeuer{
		consumerGroups: map[string]sarama.ConsumerGroup{"drift": g},
		cfg:            NewConfig(),
		log:            zap.NewNop(),
		backoff:        backoff,
	}
}

func TestDequeue_BacksOffAfterHandlerError(t *testing.T) {
	g := &fakeGroup{values: []string{"a"}}
	k := newTestDequeuer(g, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 220*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	err := k.Dequeue(ctx, "drift", func(ctx context.Context, data []byte) error {
		calls.Add(1)
		return errors.New("index down")
	})
	require.NoError(t, err)

	// one session per backoff window, not a tight rejoin loop
	assert.GreaterOrEqual(t, g.sessions.Load(), int32(2))
	assert.LessOrEqual(t, g.sessions.Load(), int32(6))
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestConsumerGroupHandler_TakeFailure(t *testing.T) {
	h := newConsumerGroupHandler(func(ctx context.Context, data []byte) error {
		if string(data) == "bad" {
			return errors.New("index down")
		}
		return nil
	}, zap.NewNop())

	require.NoError(t, h.ConsumeClaim(&fakeSession{ctx: context.Background()}, claimOf("ok")))
	assert.False(t, h.takeFailure())

	assert.Error(t, h.ConsumeClaim(&fakeSession{ctx: context.Background()}, claimOf("bad")))
	assert.True(t, h.takeFailure())
	assert.False(t, h.takeFailure())
}
