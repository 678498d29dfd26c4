// Package notifier announces newly recorded businesses on a Discord webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/pauljones0/dealiem-scraper/internal/models"
)

const (
	colorNewBusiness = 5763719 // #57F287

	// Discord embed limits. maxEmbedLen caps title, description, field
	// names and values and the footer combined.
	maxTitleLen      = 256
	maxAddressLen    = 1024
	maxFieldValueLen = 1024
	maxEmbedLen      = 6000

	noDeals = "No deals"
)

var weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

type Client struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Webhooks allow roughly 5 requests per 2 seconds.
		rateLimiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 1),
	}
}

// Enabled reports whether a webhook is configured.
func (c *Client) Enabled() bool {
	return c.webhookURL != ""
}

// Announce posts one embed describing a newly written weekly document. It is
// a no-op without a webhook.
func (c *Client) Announce(ctx context.Context, doc models.WeeklyDealDocument) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	payload := discordWebhookPayload{Embeds: []discordEmbed{formatDocumentToEmbed(doc)}}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Debug("Announced business on Discord", "name", doc.Name)
		return nil
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("discord status: %s, body: %s", resp.Status, string(bodyBytes))
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedThumbnail struct {
	URL string `json:"url,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	URL         string                 `json:"url,omitempty"`
	Color       int                    `json:"color,omitempty"`
	Thumbnail   *discordEmbedThumbnail `json:"thumbnail,omitempty"`
	Fields      []discordEmbedField    `json:"fields,omitempty"`
	Footer      *discordEmbedFooter    `json:"footer,omitempty"`
}

func formatDocumentToEmbed(doc models.WeeklyDealDocument) discordEmbed {
	embed := discordEmbed{
		Title:       truncate(doc.Name, maxTitleLen),
		URL:         doc.URL,
		Description: truncate(doc.Address, maxAddressLen),
		Color:       colorNewBusiness,
	}
	if len(doc.Images) > 0 {
		embed.Thumbnail = &discordEmbedThumbnail{URL: doc.Images[0]}
	}

	total := 0
	values := make([]string, len(weekdays))
	for i, day := range weekdays {
		deals := doc.Day(day).Description
		total += len(deals)
		values[i] = noDeals
		if len(deals) > 0 {
			lines := make([]string, len(deals))
			for j, d := range deals {
				lines[j] = "• " + string(d)
			}
			values[i] = truncate(strings.Join(lines, "\n"), maxFieldValueLen)
		}
	}
	embed.Footer = &discordEmbedFooter{Text: fmt.Sprintf("%d deals this week", total)}

	used := runeLen(embed.Title) + runeLen(embed.Description) + runeLen(embed.Footer.Text)
	for _, day := range weekdays {
		used += runeLen(day)
	}
	values = fitValues(values, maxEmbedLen-used)

	for i, day := range weekdays {
		embed.Fields = append(embed.Fields, discordEmbedField{Name: day, Value: values[i]})
	}
	return embed
}

// fitValues shortens values so their combined length is at most budget.
// Short values are kept whole and the rest share what is left evenly.
func fitValues(values []string, budget int) []string {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return runeLen(values[a]) - runeLen(values[b])
	})

	fitted := make([]string, len(values))
	remaining := budget
	for n, i := range order {
		share := max(remaining/(len(values)-n), 1)
		fitted[i] = truncate(values[i], share)
		remaining -= runeLen(fitted[i])
	}
	return fitted
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
