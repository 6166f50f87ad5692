// Package parser recovers candidate records from free-form model answers.
//
// Answers arrive as valid JSON, JSON wrapped in prose or code fences, JSON
// with trailing commentary or broken brackets, wrapper objects, parallel
// lists, or plain "label: value" prose. Parse tries an ordered chain of
// strategies, each laxer than the previous one, and stops at the first that
// recognizes record-shaped content. It never fails: an unrecognizable answer
// yields zero records with Strategy == StrategyNone.
package parser

import (
	"log/slog"

	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

type Strategy string

const (
	StrategyStrict  Strategy = "strict"  // whole answer is JSON
	StrategyBracket Strategy = "bracket" // largest [...] span is JSON
	StrategyObjects Strategy = "objects" // individual {...} spans are JSON
	StrategyLines   Strategy = "lines"   // "label: value" prose
	StrategyNone    Strategy = "none"    // nothing recoverable
)

// Result of parsing one answer. Coerced counts JSON items that did not match
// the record schema as-is and were recovered leniently.
type Result struct {
	Records  []entity.CandidateRecord
	Strategy Strategy
	Coerced  int
}

// strategy returns ok=false when it does not recognize the text at all.
type strategy struct {
	name Strategy
	run  func(p *Parser, text string) (records []entity.CandidateRecord, coerced int, ok bool)
}

var chain = []strategy{
	{StrategyStrict, (*Parser).parseStrict},
	{StrategyBracket, (*Parser).parseBracket},
	{StrategyObjects, (*Parser).parseObjects},
	{StrategyLines, (*Parser).parseLines},
}

type Parser struct {
	validator *itemValidator
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{validator: newItemValidator(), logger: logger}
}

// Parse never panics and never returns an error.
func (p *Parser) Parse(raw string) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("parser.panic", "panic", rec)
			res = Result{Strategy: StrategyNone}
		}
	}()

	text := preprocess(raw)
	if text == "" {
		return Result{Strategy: StrategyNone}
	}
	for _, s := range chain {
		records, coerced, ok := s.run(p, text)
		if ok {
			return Result{Records: records, Strategy: s.name, Coerced: coerced}
		}
	}
	return Result{Strategy: StrategyNone}
}
