package services

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ananth-NQI/inboxcall-backend/internal/config"
)

// CallPlacer starts an outbound call
type CallPlacer interface {
	InitiateCall(to string) (string, error)
}

type TwilioService struct {
	client  *twilio.RestClient
	from    string
	baseURL string
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(cfg *config.Config) (*TwilioService, error) {
	if !cfg.TwilioConfigured() {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})

	return &TwilioService{
		client:  client,
		from:    cfg.TwilioNumber,
		baseURL: cfg.BaseURL,
	}, nil
}

// InitiateCall dials to and points the call at the greeting webhook.
// Returns the call SID.
func (t *TwilioService) InitiateCall(to string) (string, error) {
	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetUrl(GreetingURL(t.baseURL))
	params.SetMethod("POST")
	params.SetStatusCallback(t.baseURL + "/voice/status")
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	params.SetStatusCallbackMethod("POST")

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		log.Printf("❌ Failed to place call to %s: %v", to, err)
		return "", err
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Printf("✅ Call initiated! SID: %s", sid)
	return sid, nil
}

// GreetingURL is the webhook for a new call. ngrok tunnels need a flag to
// skip their browser interstitial.
func GreetingURL(baseURL string) string {
	webhook := baseURL + "/voice/greeting"
	if strings.Contains(baseURL, "ngrok") {
		webhook += "?" + url.Values{"ngrok-skip-browser-warning": {"true"}}.Encode()
	}
	return webhook
}
