package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/events"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/intent"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/llm"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/prompts"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/tools"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/usage"
)

const (
	// historyTurns caps the conversation replayed to the model.
	historyTurns = 24
	// contextRecords caps each record list in the system prompt.
	contextRecords = 20
)

// remote runs the bounded tool-calling loop against the model and
// returns the final assistant text.
func (p *Planner) remote(ctx context.Context, t *turn, c classification, forced tools.Name) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("%w: no model client configured", ErrRemote)
	}

	system, err := p.systemPrompt(ctx, t, c.document)
	if err != nil {
		return "", err
	}

	var specs []llm.ToolSpec
	choice := llm.ToolChoice{Mode: llm.ToolChoiceNone}
	if !c.document {
		specs = p.tools.Specs()
		choice = llm.ToolChoice{Mode: llm.ToolChoiceAuto}
		if forced != "" {
			choice = llm.Forced(string(forced))
			t.debug.ForcedTool = string(forced)
		}
	}

	var lastText string
	executed := 0
	for round := 1; round <= MaxRounds; round++ {
		t.debug.Rounds = round
		req := &llm.Request{
			Model:           p.model,
			Input:           append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, history(t.sess.Conversation)...),
			Tools:           specs,
			ToolChoice:      choice,
			MaxOutputTokens: p.maxTokens,
		}
		resp, err := p.send(ctx, t, req, round)
		if err != nil {
			if executed > 0 {
				// Keep the records the earlier rounds already wrote in step
				// with the session.
				if saveErr := p.records.SaveSession(ctx, t.sess); saveErr != nil {
					p.logger.Error("save session after remote failure", "event_id", t.event.ID, "error", saveErr)
				}
			}
			return "", err
		}

		msg := resp.Message
		if strings.TrimSpace(msg.Content) != "" {
			lastText = strings.TrimSpace(msg.Content)
		}
		if c.document || len(msg.ToolCalls) == 0 {
			text := p.finalText(t, c, lastText, executed)
			if c.document {
				p.saveDocument(ctx, t, text)
			}
			t.sess.Append(session.Turn{Role: session.RoleAssistant, Content: text, At: p.now().UTC()})
			return text, nil
		}

		t.sess.Append(session.Turn{Role: session.RoleAssistant, Content: msg.Content, ToolCalls: msg.ToolCalls, At: p.now().UTC()})
		for _, call := range msg.ToolCalls {
			res := p.tools.Execute(ctx, t.scope, call)
			if res.OK() {
				executed++
			}
			t.debug.ToolsExecuted = append(t.debug.ToolsExecuted, string(res.Tool))
			t.sess.Append(session.Turn{
				Role:       session.RoleTool,
				Content:    res.JSON(),
				ToolCallID: call.ID,
				Places:     tools.PlaceMaps(res.Places),
				At:         p.now().UTC(),
			})
		}
		if executed > 0 {
			t.sess.Plan.PendingAction = nil
		}
		// Only the first round is forced; later rounds let the model
		// summarize.
		choice = llm.ToolChoice{Mode: llm.ToolChoiceAuto}
	}

	text := lastText
	if text == "" {
		text = prompts.RoundsExhaustedFallback
	}
	p.logger.Warn("tool rounds exhausted", "event_id", t.event.ID, "rounds", MaxRounds, "tools", len(t.debug.ToolsExecuted))
	t.sess.Append(session.Turn{Role: session.RoleAssistant, Content: text, At: p.now().UTC()})
	return text, nil
}

// send performs one logged, metered model round-trip.
func (p *Planner) send(ctx context.Context, t *turn, req *llm.Request, round int) (*llm.Response, error) {
	logID, err := p.ledger.BeginRequest(ctx, t.event.ID, t.org.ID, req.Model, req)
	if err != nil {
		p.logger.Warn("request log unavailable", "event_id", t.event.ID, "error", err)
	}

	p.bus.Publish(events.Event{
		Source: events.SourcePlanner,
		Kind:   events.KindRemoteCall,
		Data: map[string]any{
			"event_id":    t.event.ID,
			"round":       round,
			"model":       req.Model,
			"forced_tool": req.ToolChoice.Function,
		},
	})

	start := time.Now()
	resp, sendErr := p.client.Send(ctx, req)
	latency := time.Since(start)

	if logID != "" {
		o := usage.Outcome{Latency: latency, Err: sendErr}
		if resp != nil {
			o.Usage = resp.Usage
			o.Response = resp.Raw
			if len(o.Response) == 0 {
				o.Response, _ = json.Marshal(resp.Message)
			}
		}
		// The log row is finished even when the caller has gone away.
		if err := p.ledger.FinishRequest(context.WithoutCancel(ctx), logID, o); err != nil {
			p.logger.Warn("request log not completed", "event_id", t.event.ID, "error", err)
		}
	}

	if sendErr != nil {
		p.logger.Error("remote planning call failed", "event_id", t.event.ID, "round", round, "error", sendErr, "elapsed", latency)
		return nil, fmt.Errorf("%w: %w", ErrRemote, sendErr)
	}

	if err := p.ledger.Record(ctx, t.org.ID, resp.Usage); err != nil {
		p.logger.Warn("usage not recorded", "event_id", t.event.ID, "error", err)
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	p.bus.Publish(events.Event{
		Source: events.SourcePlanner,
		Kind:   events.KindRemoteResponse,
		Data: map[string]any{
			"event_id":   t.event.ID,
			"round":      round,
			"tokens":     tokens,
			"tool_calls": len(resp.Message.ToolCalls),
			"elapsed_ms": latency.Milliseconds(),
		},
	})
	p.logger.Debug("remote response",
		"event_id", t.event.ID,
		"round", round,
		"tokens", tokens,
		"tool_calls", len(resp.Message.ToolCalls),
		"elapsed", latency,
	)
	return resp, nil
}

// finalText settles the reply of a round without tool calls and the
// pending action that goes with it.
func (p *Planner) finalText(t *turn, c classification, text string, executed int) string {
	if !c.document && c.hasInferred && executed == 0 {
		t.sess.Plan.PendingAction = &session.PendingAction{
			Tool:        string(c.inferred),
			RequestedAt: p.now().UTC(),
			LastPrompt:  t.req.Message,
		}
	}
	if text != "" {
		return text
	}
	if c.hasInferred {
		if g := prompts.ToolGuidance(string(c.inferred)); g != "" {
			return g
		}
	}
	return prompts.EmptyResponseFallback
}

// saveDocument stores a document draft. A failed save is logged; the
// draft still reaches the user in the reply.
func (p *Planner) saveDocument(ctx context.Context, t *turn, content string) {
	kind := intent.DocumentKind(t.req.Message)
	if kind == "" {
		kind = "document"
	}
	doc := &store.Document{
		EventID: t.event.ID,
		Title:   cases.Title(language.English).String(kind) + " for " + t.event.Title,
		DocType: strings.ReplaceAll(kind, " ", "_"),
		Content: content,
	}
	if err := p.records.CreateDocument(ctx, doc); err != nil {
		p.logger.Error("document draft not saved", "event_id", t.event.ID, "doc_type", doc.DocType, "error", err)
		return
	}
	p.logger.Info("document draft saved", "event_id", t.event.ID, "document_id", doc.ID, "doc_type", doc.DocType)
}

// systemPrompt renders the event context for the model.
func (p *Planner) systemPrompt(ctx context.Context, t *turn, document bool) (string, error) {
	snap, err := p.records.Snapshot(ctx, t.event.ID)
	if err != nil {
		return "", fmt.Errorf("load event context: %w", err)
	}
	return prompts.PlannerSystemPrompt(prompts.SystemInput{
		Today:               p.now(),
		EventID:             t.event.ID,
		OrganizationAddress: t.org.Address,
		Event:               snap.Event,
		Plan:                t.sess.Plan.Sections,
		MissingItems:        t.sess.MissingItems,
		Tasks:               recent(snap.Tasks),
		BudgetItems:         recent(snap.BudgetItems),
		Participants:        recent(snap.Participants),
		Preferences:         t.sess.Plan.Preferences,
		DocumentMode:        document,
	}), nil
}

func recent[T any](s []T) []T {
	if len(s) > contextRecords {
		return s[len(s)-contextRecords:]
	}
	return s
}

// history converts the tail of the conversation into model messages.
// Tool results whose calling assistant turn fell outside the window
// are dropped.
func history(turns []session.Turn) []llm.Message {
	if len(turns) > historyTurns {
		turns = turns[len(turns)-historyTurns:]
	}
	for len(turns) > 0 && turns[0].Role == session.RoleTool {
		turns = turns[1:]
	}
	msgs := make([]llm.Message, 0, len(turns))
	for _, tn := range turns {
		msgs = append(msgs, llm.Message{
			Role:       tn.Role,
			Content:    tn.Content,
			ToolCalls:  tn.ToolCalls,
			ToolCallID: tn.ToolCallID,
		})
	}
	return msgs
}

