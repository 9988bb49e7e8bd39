package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushMessage 推送内容
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushSender sends one message to a set of device tokens and reports the tokens
// the provider rejected as no longer valid.
type PushSender interface {
	Send(ctx context.Context, tokens []string, msg PushMessage) (invalid []string, err error)
}

// multicastClient 只用到 messaging.Client 的这一个方法
type multicastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMPushService sends push notifications through Firebase Cloud Messaging.
type FCMPushService struct {
	client multicastClient
}

func NewFCMPushService(ctx context.Context, credentialsFile string) (*FCMPushService, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMPushService{client: client}, nil
}

// FCM 单次 multicast 最多 500 个 token
const fcmMaxTokens = 500

func (s *FCMPushService) Send(ctx context.Context, tokens []string, msg PushMessage) ([]string, error) {
	var invalid []string
	for start := 0; start < len(tokens); start += fcmMaxTokens {
		end := start + fcmMaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: chunk,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
		})
		if err != nil {
			return invalid, fmt.Errorf("fcm multicast: %w", err)
		}
		for i, r := range resp.Responses {
			if r.Success || r.Error == nil {
				continue
			}
			if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
				invalid = append(invalid, chunk[i])
			}
		}
	}
	return invalid, nil
}
