package livequery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ListenerConfig はPostgresListenerの設定。
type ListenerConfig struct {
	Channel      string        // LISTENするチャネル名
	MinReconnect time.Duration // 再接続間隔の最小値
	MaxReconnect time.Duration // 再接続間隔の最大値
	PingInterval time.Duration // 接続確認の間隔
}

// PostgresListener はPostgreSQLのLISTEN/NOTIFYをHubへ橋渡しする。
// 通知のペイロードは変更されたタスクの所有者ID。
type PostgresListener struct {
	databaseURL string
	hub         *Hub
	config      ListenerConfig
	logger      *slog.Logger
}

// NewPostgresListener はPostgresListenerを生成する。
func NewPostgresListener(databaseURL string, hub *Hub, config ListenerConfig, logger *slog.Logger) *PostgresListener {
	if config.MinReconnect <= 0 {
		config.MinReconnect = 10 * time.Second
	}
	if config.MaxReconnect < config.MinReconnect {
		config.MaxReconnect = config.MinReconnect
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 90 * time.Second
	}
	return &PostgresListener{
		databaseURL: databaseURL,
		hub:         hub,
		config:      config,
		logger:      logger,
	}
}

// Run はctxがキャンセルされるまで通知を受信し続ける。
// 接続断はpq.Listenerが自動で再接続する。
func (l *PostgresListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.databaseURL, l.config.MinReconnect, l.config.MaxReconnect, l.logEvent)
	defer listener.Close()

	if err := listener.Listen(l.config.Channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.config.Channel, err)
	}

	l.logger.Info("live query listener started", slog.String("channel", l.config.Channel))
	l.dispatch(ctx, listener.NotificationChannel(), listener.Ping)
	l.logger.Info("live query listener stopped")
	return nil
}

// dispatch は通知をHubへ転送する。
// nilの通知は再接続を意味し、取りこぼし対策として全購読者へ通知する。
func (l *PostgresListener) dispatch(ctx context.Context, notifications <-chan *pq.Notification, ping func() error) {
	ticker := time.NewTicker(l.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n == nil {
				l.logger.Warn("live query listener reconnected, resynchronizing all subscriptions")
				l.hub.PublishAll()
				continue
			}
			if n.Extra == "" {
				continue
			}
			l.hub.Publish(n.Extra)
		case <-ticker.C:
			if err := ping(); err != nil {
				l.logger.Warn("live query listener ping failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (l *PostgresListener) logEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.logger.Info("live query listener connected")
	case pq.ListenerEventDisconnected:
		l.logger.Warn("live query listener disconnected", errAttr(err))
	case pq.ListenerEventReconnected:
		l.logger.Info("live query listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Error("live query listener connection attempt failed", errAttr(err))
	}
}

func errAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
