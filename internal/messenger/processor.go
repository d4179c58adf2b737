package messenger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/ask-widget/internal/backend"
	"github.com/suPer8Hu/ask-widget/internal/lang"
	"github.com/suPer8Hu/ask-widget/internal/logx"
)

const (
	GreetingText   = "Bonjour ! Je suis votre assistant virtuel. Posez-moi votre question et je ferai de mon mieux pour vous aider. 🤖"
	NoAnswerText   = "Désolé, je n'ai pas de réponse pour le moment."
	OverloadedText = "Désolé, je suis temporairement surchargé. Réessayez dans quelques minutes. 🤖"
	ServerText     = "Oups, un souci côté serveur. Réessayez dans un instant svp. 🔧"
	GenericText    = "Désolé, une erreur inattendue s'est produite. Réessayez plus tard. 😔"
)

// ErrApologized marks a failed exchange the user was already told about;
// retrying it would send a second reply.
var ErrApologized = errors.New("messenger: failure reported to user")

type Asker interface {
	AskOnce(ctx context.Context, req backend.AskRequest) (backend.AskResponse, error)
}

// Processor answers one Messenger question end to end.
type Processor struct {
	asker     Asker
	sender    Sender
	companyID string
	// Delay spaces the typing indicator and the backend call.
	Delay time.Duration
}

func NewProcessor(asker Asker, sender Sender, companyID string) *Processor {
	return &Processor{asker: asker, sender: sender, companyID: companyID, Delay: time.Second}
}

// FailureText picks the user-facing reply for a failed exchange.
func FailureText(err error) string {
	var se *backend.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429 || strings.Contains(se.Body, "capacity exceeded"):
			return OverloadedText
		case se.StatusCode == 500:
			return ServerText
		}
	}
	if err != nil && strings.Contains(err.Error(), "capacity exceeded") {
		return OverloadedText
	}
	return GenericText
}

func (p *Processor) action(ctx context.Context, psid string, a SenderAction) {
	if _, err := p.sender.SendSenderAction(ctx, psid, a); err != nil {
		logx.Warnf("[messenger] %s psid=%s failed: %v", a, psid, err)
	}
}

// Greet answers the GET_STARTED postback.
func (p *Processor) Greet(ctx context.Context, psid string) {
	p.action(ctx, psid, MarkSeen)
	if _, err := p.sender.SendText(ctx, psid, GreetingText); err != nil {
		logx.Warnf("[messenger] greeting psid=%s failed: %v", psid, err)
	}
}

// Reply marks the message seen, asks the backend and sends the answer. On
// failure the user gets a mapped apology and the error is returned wrapped in
// ErrApologized. The
// typing indicator is always switched off.
func (p *Processor) Reply(ctx context.Context, psid, question string) (string, error) {
	p.action(ctx, psid, MarkSeen)
	p.action(ctx, psid, TypingOn)
	defer p.action(context.WithoutCancel(ctx), psid, TypingOff)

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	resp, err := p.asker.AskOnce(ctx, backend.AskRequest{
		Question:       question,
		CompanyID:      p.companyID,
		SessionID:      "messenger_" + psid,
		ExternalUserID: psid,
		Langue:         lang.French.String(),
	})
	if err != nil {
		logx.Errorf("[messenger] ask psid=%s failed: %v", psid, err)
		if _, sendErr := p.sender.SendText(ctx, psid, FailureText(err)); sendErr != nil {
			logx.Warnf("[messenger] apology psid=%s failed: %v", psid, sendErr)
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrApologized, err)
	}

	answer := resp.Answer
	if answer == "" {
		answer = NoAnswerText
	}
	if _, err := p.sender.SendText(ctx, psid, answer); err != nil {
		return answer, err
	}
	return answer, nil
}
