package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"bookwire/internal/audit"
	"bookwire/internal/broker"
	"bookwire/internal/constants"
	"bookwire/internal/event"
	"bookwire/internal/logger"
)

// Analyzer classifies dead-lettered messages so an operator can tell at a
// glance which ones are worth replaying. Classification precedence: payload
// structure first, then failure metadata and correlated traces, then the
// delivery history, and only then UNKNOWN_ERROR.
type Analyzer struct {
	reader    broker.DLQReader
	traces    audit.Store
	validator *event.Validator
	// receive count at or above which an otherwise undiagnosed message is
	// called a repeated failure
	repeatThreshold int
	logger          logger.Logger
}

func NewAnalyzer(reader broker.DLQReader, traces audit.Store, validator *event.Validator, repeatThreshold int, log logger.Logger) *Analyzer {
	if traces == nil {
		traces = audit.NopStore{}
	}
	if repeatThreshold <= 0 {
		repeatThreshold = constants.DefaultMaxReceiveCount
	}
	return &Analyzer{
		reader:          reader,
		traces:          traces,
		validator:       validator,
		repeatThreshold: repeatThreshold,
		logger:          log,
	}
}

// Analyze drains up to limit messages and produces an aggregate report.
func (a *Analyzer) Analyze(ctx context.Context, limit int) (*Report, error) {
	messages, err := a.reader.Drain(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letter topic: %w", err)
	}

	report := &Report{
		TotalMessages: len(messages),
		ByErrorType:   make(map[ErrorType]int),
	}

	for _, msg := range messages {
		analysis := a.AnalyzeMessage(ctx, msg)
		report.Analyses = append(report.Analyses, analysis)
		report.ByErrorType[analysis.ErrorType]++
		if analysis.IsReprocessable {
			report.Reprocessable++
		}
		if !msg.EnqueuedAt.IsZero() {
			if report.OldestTimestamp.IsZero() || msg.EnqueuedAt.Before(report.OldestTimestamp) {
				report.OldestTimestamp = msg.EnqueuedAt
			}
			if msg.EnqueuedAt.After(report.NewestTimestamp) {
				report.NewestTimestamp = msg.EnqueuedAt
			}
		}
	}

	report.Summary = summarize(report)
	a.logger.Infow("dead letter analysis complete",
		"total", report.TotalMessages,
		"reprocessable", report.Reprocessable,
	)
	return report, nil
}

// AnalyzeMessage diagnoses a single message.
func (a *Analyzer) AnalyzeMessage(ctx context.Context, msg broker.DLQMessage) MessageAnalysis {
	analysis := MessageAnalysis{
		MessageID:         msg.MessageID,
		FailureReason:     msg.FailureReason,
		FailureStage:      msg.FailureStage,
		ReceiveCount:      msg.ReceiveCount,
		OriginalTimestamp: msg.EnqueuedAt,
	}

	center := msg.FailedAt
	if center.IsZero() {
		center = msg.EnqueuedAt
	}
	if !center.IsZero() {
		traces, err := a.traces.FindWindow(ctx, msg.MessageID, center, constants.CorrelationWindow)
		if err != nil {
			a.logger.Warnw("failed to load correlated traces",
				"message_id", msg.MessageID, "error", err)
		} else {
			analysis.CorrelatedTraces = traces
		}
	}

	analysis.ErrorType, analysis.RootCause = a.classify(msg, analysis.CorrelatedTraces)
	analysis.IsReprocessable = analysis.ErrorType.IsReprocessable()
	analysis.Recommendation = analysis.ErrorType.Recommendation()
	return analysis
}

func (a *Analyzer) classify(msg broker.DLQMessage, traces []audit.Entry) (ErrorType, string) {
	// Structural problems are decisive regardless of recorded failure
	// metadata; the payload speaks for itself.
	if t, cause, structural := a.classifyStructure(msg.Body); structural {
		return t, cause
	}

	if t, cause, ok := classifyMetadata(msg); ok {
		return t, cause
	}

	if t, cause, ok := classifyTraces(traces); ok {
		return t, cause
	}

	if msg.ReceiveCount >= a.repeatThreshold {
		return ErrorTypeRepeatedFailure,
			fmt.Sprintf("failed %d deliveries without a specific diagnosis", msg.ReceiveCount)
	}

	if msg.FailureReason != "" {
		return ErrorTypeUnknown, msg.FailureReason
	}
	return ErrorTypeUnknown, "no failure metadata recorded"
}

// classifyStructure reports whether the payload itself is the problem.
func (a *Analyzer) classifyStructure(body []byte) (ErrorType, string, bool) {
	payload := unwrapBody(body)

	if !json.Valid(payload) {
		return ErrorTypeInvalidFormat, "payload is not valid JSON", true
	}

	var evt event.StatusChangeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return ErrorTypeEventDetection, "payload does not match the event schema", true
	}
	if evt.EventType != event.TypeBookStatusChanged {
		return ErrorTypeEventDetection,
			fmt.Sprintf("unrecognized event type %q", evt.EventType), true
	}

	result := a.validator.Validate(&evt)
	if !result.IsValid {
		fields := make([]string, 0, len(result.Errors))
		for _, fe := range result.Errors {
			fields = append(fields, fe.Field)
		}
		return ErrorTypeInvalidEventData,
			fmt.Sprintf("event constraint violations on: %s", strings.Join(fields, ", ")), true
	}

	return "", "", false
}

func classifyMetadata(msg broker.DLQMessage) (ErrorType, string, bool) {
	switch msg.FailureCode {
	case "TIMEOUT":
		return ErrorTypeTimeout, msg.FailureReason, true
	case "VALIDATION_ERROR":
		return ErrorTypeValidation, msg.FailureReason, true
	}
	if strings.Contains(strings.ToLower(msg.FailureReason), "timeout") ||
		strings.Contains(strings.ToLower(msg.FailureReason), "timed out") {
		return ErrorTypeTimeout, msg.FailureReason, true
	}
	return "", "", false
}

func classifyTraces(traces []audit.Entry) (ErrorType, string, bool) {
	for _, entry := range traces {
		if entry.Level != audit.LevelError {
			continue
		}
		detail := strings.ToLower(entry.Detail)
		if strings.Contains(detail, "timeout") || strings.Contains(detail, "timed out") {
			return ErrorTypeTimeout, entry.Detail, true
		}
		if entry.Stage == audit.StageValidate && strings.Contains(detail, "valid") {
			return ErrorTypeValidation, entry.Detail, true
		}
	}
	return "", "", false
}

// summarize renders the operator-facing narrative for a report.
func summarize(report *Report) string {
	if report.TotalMessages == 0 {
		return "Dead letter queue is empty, no action needed."
	}

	types := make([]ErrorType, 0, len(report.ByErrorType))
	for t := range report.ByErrorType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if report.ByErrorType[types[i]] != report.ByErrorType[types[j]] {
			return report.ByErrorType[types[i]] > report.ByErrorType[types[j]]
		}
		return types[i] < types[j]
	})

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%d %s", report.ByErrorType[t], t))
	}

	summary := fmt.Sprintf("%d dead-lettered messages: %s.", report.TotalMessages, strings.Join(parts, ", "))
	if report.Reprocessable > 0 {
		summary += fmt.Sprintf(" %d can be reprocessed.", report.Reprocessable)
	} else {
		summary += " None are safe to reprocess; fix the producers and purge."
	}
	return summary
}

type transportEnvelope struct {
	Message string `json:"Message"`
}

func unwrapBody(raw []byte) []byte {
	var env transportEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return []byte(env.Message)
	}
	return raw
}
