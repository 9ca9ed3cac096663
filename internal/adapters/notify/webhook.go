package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// Embed colours (Discord integer RGB).
const (
	colorExecuted = 0x2ecc71
	colorSkipped  = 0x95a5a6
	colorRejected = 0xf1c40f
	colorFailed   = 0xe74c3c
)

// Webhook publica señales en un webhook compatible con Discord.
type Webhook struct {
	client *resty.Client
	url    string
}

// NewWebhook crea un notificador que hace POST a url.
func NewWebhook(url string) *Webhook {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")
	return &Webhook{client: client, url: url}
}

type webhookPayload struct {
	Content string         `json:"content"`
	Embeds  []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []webhookField `json:"fields"`
	Timestamp string         `json:"timestamp"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Notify envía la señal. Un status no-2xx se devuelve como error.
func (w *Webhook) Notify(ctx context.Context, ev domain.SignalEvent) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(buildPayload(ev)).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("notify.Webhook: post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify.Webhook: status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return nil
}

func buildPayload(ev domain.SignalEvent) webhookPayload {
	capital := decimal.NewFromFloat(ev.RecommendedCapital).StringFixed(2)
	shares := decimal.NewFromFloat(ev.RecommendedShares).StringFixed(2)

	fields := []webhookField{
		{Name: "Source", Value: sourceLabel(ev), Inline: true},
		{Name: "Side", Value: string(ev.Side), Inline: true},
		{Name: "Confidence", Value: fmt.Sprintf("%d/100", ev.Confidence), Inline: true},
		{Name: "Capital", Value: "$" + capital, Inline: true},
		{Name: "Shares", Value: shares, Inline: true},
		{Name: "Disposition", Value: string(ev.Disposition), Inline: true},
	}
	if ev.Reason != "" {
		fields = append(fields, webhookField{Name: "Reason", Value: ev.Reason})
	}

	return webhookPayload{
		Content: fmt.Sprintf("%s %s", icon(ev.Disposition), truncate(marketLabel(ev), 80)),
		Embeds: []webhookEmbed{{
			Title:     truncate(marketLabel(ev), 200),
			Color:     embedColor(ev.Disposition),
			Fields:    fields,
			Timestamp: ev.At.UTC().Format(time.RFC3339),
		}},
	}
}

func embedColor(d domain.Disposition) int {
	switch d {
	case domain.DispositionExecuted:
		return colorExecuted
	case domain.DispositionSkippedLowConfidence:
		return colorSkipped
	case domain.DispositionRejectedRisk:
		return colorRejected
	}
	return colorFailed
}
