package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/randomcoffee/internal/mq"
)

// NewWatchCmd создаёт команду, которая печатает события циклов из RabbitMQ.
//
// Команда объявляет собственную временную очередь (mq.DeclareTap), поэтому
// не забирает сообщения у чат-бота. После reconnect очередь объявляется
// заново; события, опубликованные во время разрыва, теряются.
func NewWatchCmd(outputFn func() *Output, logger *slog.Logger) *cobra.Command {
	var amqpURL string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail cycle events (roster.opened, cycle.committed) from RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			conn, err := mq.NewConnection(amqpURL, "coffee-cli-watch", logger)
			if err != nil {
				return fmt.Errorf("connect to rabbitmq: %w", err)
			}
			defer conn.Close()

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Declare: func(ctx context.Context) (mq.Queue, error) {
					return mq.DeclareTap(ctx, conn)
				},
				Handler: func(_ context.Context, d *mq.Delivery) error {
					return printEvent(out, &d.Message)
				},
				Prefetch: 10,
			})

			out.Info("watching cycle events, press Ctrl+C to stop")
			err = consumer.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&amqpURL, "amqp-url", mq.DefaultURL(), "RabbitMQ URL")

	return cmd
}

// printEvent выводит одно событие: строкой или JSON.
func printEvent(out *Output, msg *mq.Message) error {
	if out.jsonMode {
		out.JSON(msg)
		return nil
	}

	line, err := describeEvent(msg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out.w, line)
	return nil
}

// describeEvent форматирует событие для человека.
func describeEvent(msg *mq.Message) (string, error) {
	ts := msg.Timestamp.UTC().Format(time.RFC3339)

	switch msg.Type {
	case mq.MessageTypeRosterOpened:
		p, err := mq.ParsePayload[mq.RosterOpenedPayload](msg)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s  %s  %s  opens %s, closes %s",
			ts, msg.Type, p.CycleKey,
			p.OpensAt.UTC().Format(time.RFC3339),
			p.ClosesAt.UTC().Format(time.RFC3339),
		), nil

	case mq.MessageTypeCycleCommitted:
		p, err := mq.ParsePayload[mq.CycleCommittedPayload](msg)
		if err != nil {
			return "", err
		}
		if p.Insufficient {
			return fmt.Sprintf("%s  %s  %s  insufficient participants", ts, msg.Type, p.CycleKey), nil
		}

		groups := make([]string, len(p.Groups))
		for i, members := range p.Groups {
			g := GroupResponse{Members: make([]MemberResponse, len(members))}
			for j, m := range members {
				g.Members[j] = MemberResponse{ID: int64(m.ID), DisplayName: m.DisplayName}
			}
			groups[i] = "[" + formatGroup(g) + "]"
		}
		return fmt.Sprintf("%s  %s  %s  %d groups: %s",
			ts, msg.Type, p.CycleKey, len(p.Groups), strings.Join(groups, " "),
		), nil

	default:
		return fmt.Sprintf("%s  %s  (unknown event)", ts, msg.Type), nil
	}
}
