package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/twilio/twilio-go/twiml"

	"github.com/Ananth-NQI/inboxcall-backend/internal/conversation"
	"github.com/Ananth-NQI/inboxcall-backend/internal/services"
)

const (
	greetingPath     = "/voice/greeting"
	processInputPath = "/voice/process_input"
	readEmailPath    = "/voice/read_email"
)

// terminalStatuses are CallStatus values after which the call is gone
var terminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// VoicePayload is the form Twilio posts to voice webhooks
type VoicePayload struct {
	CallSid      string `form:"CallSid"`
	AccountSid   string `form:"AccountSid"`
	From         string `form:"From"` // Caller number
	To           string `form:"To"`   // Your Twilio number
	CallStatus   string `form:"CallStatus"`
	SpeechResult string `form:"SpeechResult"`
	Confidence   string `form:"Confidence"`
	Digits       string `form:"Digits"`
}

// VoiceHandler handles Twilio voice webhooks
type VoiceHandler struct {
	turns    *services.TurnAdapter
	voice    string
	language string
}

// NewVoiceHandler creates a new voice handler
func NewVoiceHandler(turns *services.TurnAdapter, voice, language string) *VoiceHandler {
	return &VoiceHandler{
		turns:    turns,
		voice:    voice,
		language: language,
	}
}

// Greeting answers a new call
func (h *VoiceHandler) Greeting(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		return badPayload(c, err)
	}
	log.Printf("📞 Incoming call %s from %s", payload.CallSid, payload.From)

	out, err := h.turns.HandleTurn(c.UserContext(), services.Turn{
		CallID: payload.CallSid,
		Caller: payload.From,
		Signal: services.SignalSpeech,
	})
	if err != nil {
		return h.malformed(c, err)
	}
	return h.render(c, out, conversation.PromptNoInputGreeting, greetingPath)
}

// ProcessInput handles speech or keypad input from a Gather
func (h *VoiceHandler) ProcessInput(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		return badPayload(c, err)
	}

	turn := services.Turn{
		CallID: payload.CallSid,
		Caller: payload.From,
		Speech: payload.SpeechResult,
		Digits: payload.Digits,
		Signal: services.SignalSpeech,
	}
	if strings.TrimSpace(payload.SpeechResult) == "" {
		turn.Signal = services.SignalDigits
	}
	if payload.SpeechResult != "" {
		log.Printf("🎤 Call %s said %q (confidence %s)", payload.CallSid, payload.SpeechResult, payload.Confidence)
	}

	out, err := h.turns.HandleTurn(c.UserContext(), turn)
	if err != nil {
		return h.malformed(c, err)
	}
	return h.renderForMode(c, out)
}

// ReadEmail repeats the email the caller is on
func (h *VoiceHandler) ReadEmail(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		return badPayload(c, err)
	}
	if payload.CallSid == "" {
		return h.malformed(c, &conversation.MalformedTurnError{Reason: "missing call identifier"})
	}

	out, err := h.turns.ReadCurrent(c.UserContext(), payload.CallSid)
	var notFound *conversation.SessionNotFoundError
	if errors.As(err, &notFound) {
		log.Printf("⚠️  %v, restarting", err)
		return h.twiml(c,
			h.say(conversation.PromptSessionRestart),
			&twiml.VoiceRedirect{Url: greetingPath, Method: "POST"},
		)
	}
	if err != nil {
		log.Printf("❌ Read email failed for call %s: %v", payload.CallSid, err)
		out = conversation.Instruction{Prompt: conversation.PromptApology, ExpectMoreInput: true}
	}
	return h.renderForMode(c, out)
}

// Status receives call progress callbacks. A finished call ends its session.
func (h *VoiceHandler) Status(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		return badPayload(c, err)
	}
	log.Printf("📊 Call %s status: %s", payload.CallSid, payload.CallStatus)

	if terminalStatuses[strings.ToLower(payload.CallStatus)] {
		if _, err := h.turns.HandleTurn(c.UserContext(), services.Turn{
			CallID: payload.CallSid,
			Signal: services.SignalHangup,
		}); err != nil {
			log.Printf("⚠️  Ignoring status callback: %v", err)
		}
	}
	return c.SendString("OK")
}

func (h *VoiceHandler) renderForMode(c *fiber.Ctx, out conversation.Instruction) error {
	switch out.Mode {
	case conversation.ModeEmailReading:
		return h.render(c, out, conversation.PromptNoInputReading, readEmailPath)
	default:
		return h.render(c, out, "", processInputPath)
	}
}

// render turns an instruction into TwiML. When more input is expected the
// prompt is spoken inside a Gather, followed by what happens on silence.
//
// Every menu is a single key, so the Gather submits on the first press.
// Twilio never posts a press of the finish key alone, so while a reply is
// dictated the finish key moves to * and # arrives in Digits as "send".
func (h *VoiceHandler) render(c *fiber.Ctx, out conversation.Instruction, noInputPrompt, noInputURL string) error {
	if out.EndCall || !out.ExpectMoreInput {
		return h.twiml(c, h.say(out.Prompt), &twiml.VoiceHangup{})
	}

	finishOnKey := "#"
	if out.Mode == conversation.ModeDictatingReply {
		finishOnKey = "*"
	}
	gather := &twiml.VoiceGather{
		Input:         "speech dtmf",
		Action:        processInputPath,
		Method:        "POST",
		SpeechTimeout: "auto",
		Language:      h.language,
		FinishOnKey:   finishOnKey,
		NumDigits:     "1",
		InnerElements: []twiml.Element{h.say(out.Prompt)},
	}

	verbs := []twiml.Element{gather}
	if noInputPrompt != "" {
		verbs = append(verbs, h.say(noInputPrompt))
	}
	verbs = append(verbs, &twiml.VoiceRedirect{Url: noInputURL, Method: "POST"})
	return h.twiml(c, verbs...)
}

func (h *VoiceHandler) say(message string) *twiml.VoiceSay {
	return &twiml.VoiceSay{
		Message:  message,
		Voice:    h.voice,
		Language: h.language,
	}
}

func (h *VoiceHandler) twiml(c *fiber.Ctx, verbs ...twiml.Element) error {
	xml, err := twiml.Voice(verbs)
	if err != nil {
		log.Printf("❌ Failed to render TwiML: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to render response")
	}
	c.Set(fiber.HeaderContentType, "text/xml")
	return c.SendString(xml)
}

func (h *VoiceHandler) malformed(c *fiber.Ctx, err error) error {
	log.Printf("❌ Rejected voice webhook: %v", err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func parsePayload(c *fiber.Ctx) (*VoicePayload, error) {
	var payload VoicePayload
	if err := c.BodyParser(&payload); err != nil {
		return nil, err
	}
	// Parsed values alias the request buffer, which fasthttp reuses once
	// the handler returns. CallSid and From outlive the request.
	return &VoicePayload{
		CallSid:      utils.CopyString(payload.CallSid),
		AccountSid:   utils.CopyString(payload.AccountSid),
		From:         utils.CopyString(payload.From),
		To:           utils.CopyString(payload.To),
		CallStatus:   utils.CopyString(payload.CallStatus),
		SpeechResult: utils.CopyString(payload.SpeechResult),
		Confidence:   utils.CopyString(payload.Confidence),
		Digits:       utils.CopyString(payload.Digits),
	}, nil
}

func badPayload(c *fiber.Ctx, err error) error {
	log.Printf("Error parsing webhook: %v", err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid webhook payload",
	})
}
