// Package qualification classifies inbound prospect replies and decides where
// they route: automated response, human review, or the nurture track.
package qualification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"outreach_server/core/domain"
	"outreach_server/core/port/out"
	"outreach_server/pkg/apperr"
	"outreach_server/pkg/logger"
	"outreach_server/pkg/retry"

	"github.com/goccy/go-json"
)

const systemPrompt = `You are a B2B sales development assistant. You analyze a prospect's reply to an outbound campaign and decide whether it signals genuine buying intent.

Respond with ONLY a JSON object, no prose, in this exact shape:
{
  "qualification_status": "qualified" | "not_qualified" | "needs_more_info",
  "confidence_score": <integer 0-100>,
  "proposed_channel": "email" | "linkedin",
  "proposed_response": "<a reply you would send, matching the prospect's tone>",
  "reasoning": "<one or two sentences explaining the verdict>"
}

Rules:
- "qualified" means the prospect shows concrete interest (asks about pricing, demo, next steps).
- "not_qualified" means a clear rejection, unsubscribe request, or wrong person.
- "needs_more_info" means the reply is ambiguous or asks a question you cannot resolve.
- confidence_score expresses how certain you are of the status, not how good the lead is.`

// Engine builds the qualification prompt, invokes the model, and parses its
// JSON verdict. Parse failures are surfaced, never defaulted.
type Engine struct {
	llm    out.LLM
	policy retry.Policy
}

func NewEngine(llm out.LLM) *Engine {
	return &Engine{
		llm:    llm,
		policy: retry.ModelCallBackoff(),
	}
}

// Qualify classifies the reply in the given conversation context.
// Fails with AIServiceError on transport errors after the retry budget, and
// with AIParseError when the model output cannot be parsed.
func (e *Engine) Qualify(ctx context.Context, convo *domain.ConversationContext) (*domain.QualificationResult, error) {
	if e.llm == nil {
		return nil, apperr.AIServiceError(nil)
	}

	userPrompt := buildUserPrompt(convo)

	start := time.Now()
	var raw string
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = e.llm.CompleteWithSystem(ctx, systemPrompt, userPrompt)
		return callErr
	})
	if err != nil {
		logger.Default().WithError(err).WithDuration(time.Since(start)).Error("[QualificationEngine] model invocation failed")
		return nil, apperr.AIServiceError(err)
	}

	result, err := parseResult(raw)
	if err != nil {
		logger.Default().WithError(err).Warn("[QualificationEngine] unparseable model output")
		return nil, err
	}

	logger.Default().
		WithField("status", result.Status).
		WithField("confidence", result.Confidence).
		WithDuration(time.Since(start)).
		Info("[QualificationEngine] reply qualified")
	return result, nil
}

// buildUserPrompt embeds the prospect snapshot, enrichment, thread history,
// and the new reply into a single structured prompt.
func buildUserPrompt(convo *domain.ConversationContext) string {
	var b strings.Builder

	b.WriteString("## Prospect\n")
	if p := convo.Prospect; p != nil {
		fmt.Fprintf(&b, "Name: %s\n", p.FullName())
		fmt.Fprintf(&b, "Company: %s\n", p.Company)
		fmt.Fprintf(&b, "Title: %s\n", p.JobTitle)
		fmt.Fprintf(&b, "Lifecycle stage: %s\n", p.Stage)
		if p.IsVIP {
			b.WriteString("VIP: yes\n")
		}
	}

	if enr := convo.Enrichment; enr != nil {
		b.WriteString("\n## Enrichment\n")
		if len(enr.TalkingPoints) > 0 {
			fmt.Fprintf(&b, "Talking points: %s\n", strings.Join(enr.TalkingPoints, "; "))
		}
		if len(enr.PainPoints) > 0 {
			fmt.Fprintf(&b, "Pain points: %s\n", strings.Join(enr.PainPoints, "; "))
		}
		if len(enr.CompanyInsights) > 0 {
			fmt.Fprintf(&b, "Company insights: %s\n", strings.Join(enr.CompanyInsights, "; "))
		}
	}

	if len(convo.Thread) > 0 {
		b.WriteString("\n## Conversation so far (chronological)\n")
		for _, msg := range convo.Thread {
			fmt.Fprintf(&b, "[%s/%s] %s\n", msg.Direction, msg.Channel, msg.Body)
		}
	}

	fmt.Fprintf(&b, "\n## New reply (%s", convo.Channel)
	if convo.Sentiment != "" {
		fmt.Fprintf(&b, ", sentiment: %s", convo.Sentiment)
	}
	b.WriteString(")\n")
	b.WriteString(convo.ReplyText)
	b.WriteString("\n")

	return b.String()
}

// parseResult extracts the JSON verdict from the raw model output. The payload
// may be wrapped in a markdown code fence.
func parseResult(raw string) (*domain.QualificationResult, error) {
	cleaned := cleanJSONResponse(raw)
	if cleaned == "" {
		return nil, apperr.AIParseError("empty model output", nil)
	}

	var result domain.QualificationResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, apperr.AIParseError("invalid JSON", err)
	}

	if !result.Status.IsValid() {
		return nil, apperr.AIParseError(fmt.Sprintf("unknown qualification_status %q", result.Status), nil)
	}
	if result.Confidence < 0 || result.Confidence > 100 {
		return nil, apperr.AIParseError(fmt.Sprintf("confidence_score %d out of range", result.Confidence), nil)
	}
	if result.ProposedChannel != "" && !result.ProposedChannel.IsValid() {
		return nil, apperr.AIParseError(fmt.Sprintf("unknown proposed_channel %q", result.ProposedChannel), nil)
	}

	return &result, nil
}

func cleanJSONResponse(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}
