package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/selfcinema/server/internal/domain"
	"github.com/selfcinema/server/internal/repository/room"
)

// messagePayload is what gets stored as the zset member. The ingestion
// timestamp lives in the score, so it is not duplicated here.
type messagePayload struct {
	ID      string             `json:"id"`
	Sender  string             `json:"sender"`
	Content string             `json:"content"`
	Kind    domain.MessageKind `json:"kind"`
}

func (r repo) AppendMessage(ctx context.Context, params *room.AppendMessageParams) (int64, error) {
	payload, err := json.Marshal(messagePayload{
		ID:      params.Message.ID,
		Sender:  params.Message.Sender,
		Content: params.Message.Content,
		Kind:    params.Message.Kind,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	messagesKey := r.getMessagesKey(params.RoomID)
	idsKey := r.getMessageIDsKey(params.RoomID)
	lastTsKey := r.getLastTimestampKey(params.RoomID)

	ts, err := r.appendMessage.Run(ctx, r.rc,
		[]string{messagesKey, idsKey, lastTsKey},
		params.Message.ID, payload, params.Now, r.retention.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}

	pipe := r.rc.Pipeline()
	pipe.Expire(ctx, messagesKey, r.expireDuration)
	pipe.Expire(ctx, lastTsKey, r.expireDuration)
	// the ids set only has to cover the retention window: anything older was
	// trimmed from the log, so a re-post past that point is harmless.
	pipe.Expire(ctx, idsKey, 2*r.retention)
	pipe.Exec(ctx)

	if ts == 0 {
		return 0, room.ErrDuplicateMessage
	}

	return ts, nil
}

func (r repo) GetMessagesAfter(ctx context.Context, params *room.GetMessagesParams) ([]domain.ChatMessage, error) {
	messagesKey := r.getMessagesKey(params.RoomID)
	entries, err := r.rc.ZRangeByScoreWithScores(ctx, messagesKey, &redis.ZRangeBy{
		Min:   "(" + strconv.FormatInt(params.Since, 10),
		Max:   "+inf",
		Count: params.Limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	r.rc.Expire(ctx, messagesKey, r.expireDuration)

	messages := make([]domain.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		raw, ok := entry.Member.(string)
		if !ok {
			continue
		}

		var payload messagePayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}

		messages = append(messages, domain.ChatMessage{
			ID:        payload.ID,
			Sender:    payload.Sender,
			Content:   payload.Content,
			Timestamp: int64(entry.Score),
			Kind:      payload.Kind,
		})
	}

	return messages, nil
}
