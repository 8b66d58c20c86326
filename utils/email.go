package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

var emailClient = &http.Client{Timeout: 15 * time.Second}

// SendEmail sends an HTML email using the ZeptoMail HTTP API
func SendEmail(to, toName, subject, body string) error {
	apiURL := os.Getenv("ZEPTO_API_URL") // e.g. https://api.zeptomail.com/v1.1/email
	apiKey := os.Getenv("ZEPTO_API_KEY") // e.g. Zoho-enczapikey xxxxx
	from := os.Getenv("EMAIL_FROM")

	if apiURL == "" || apiKey == "" || from == "" {
		return fmt.Errorf("missing required email config")
	}

	payload := emailRequest{
		From: emailAddress{Address: from},
		To: []toRecipient{
			{
				Email: emailWithName{
					Address: to,
					Name:    toName,
				},
			},
		},
		Subject:  subject,
		HtmlBody: body,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", apiKey)

	resp, err := emailClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}

	return nil
}

// SendEmailAsync fires SendEmail in the background and logs the outcome.
func SendEmailAsync(log logrus.FieldLogger, to, toName, subject, body string) {
	if to == "" {
		return
	}
	go func() {
		if err := SendEmail(to, toName, subject, body); err != nil {
			log.WithError(err).WithField("to", to).Warn("email not sent")
			return
		}
		log.WithField("to", to).Info("email sent")
	}()
}

// SubscriptionActivatedEmail renders the confirmation sent after checkout.
func SubscriptionActivatedEmail(name, business, plan string) (string, string) {
	subject := fmt.Sprintf("%s is now listed on the %s plan", business, plan)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Thanks for subscribing! <strong>%s</strong> is now on the <strong>%s</strong> plan and will appear as a featured listing in the directory.</p>",
		html.EscapeString(name), html.EscapeString(business), html.EscapeString(plan),
	)
	return subject, body
}

// SubscriptionCanceledEmail renders the notice sent after a cancellation.
func SubscriptionCanceledEmail(name, business string) (string, string) {
	subject := fmt.Sprintf("Subscription for %s canceled", business)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>The subscription for <strong>%s</strong> has been canceled. Your listing stays in the directory without featured placement.</p>",
		html.EscapeString(name), html.EscapeString(business),
	)
	return subject, body
}
