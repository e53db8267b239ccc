package redis

import (
	"context"
	"encoding/json"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/doorcount/backend/repository"
)

type changeNotifier struct {
	client  *redislib.Client
	channel string
	logger  *zap.Logger
}

// NewChangeNotifier creates a Redis pub/sub backed change notifier. All table
// changes travel on one channel; subscribers filter by the payload.
func NewChangeNotifier(client *redislib.Client, channel string, logger *zap.Logger) repository.ChangeNotifier {
	if channel == "" {
		channel = "doorcount:changes"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &changeNotifier{client: client, channel: channel, logger: logger}
}

func (n *changeNotifier) Publish(ctx context.Context, change repository.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

func (n *changeNotifier) Subscribe(ctx context.Context) (<-chan repository.Change, error) {
	sub := n.client.Subscribe(ctx, n.channel)

	// Force the subscription to be established before returning so callers
	// never miss changes published right after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan repository.Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change repository.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					n.logger.Warn("dropping malformed change notification", zap.Error(err))
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
