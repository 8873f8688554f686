// Package tagger implements the hierarchical and linear entity-tagging
// reasoning workflows built on top of the grammar primitives (H), prompt
// state (I), cascade engine (M) and decision engine (N) — see §9's Design
// Notes: "the tagger/extractor workflows recurse through a tag tree."
// Grounded on
// original_source/llm_client/src/workflows/classify/hierarchical_classification/hierarchical_tagger.rs
// and linear_entity_tagger.rs, simplified to one recursive evaluator
// shared by both the hierarchical and the linear shape (a linear tagger
// is just a tag tree one level deep).
package tagger

import (
	"context"
	"fmt"
	"strings"

	"llmcascade/internal/cascade"
	"llmcascade/internal/telemetry"
)

var log = telemetry.Get(telemetry.CategoryWorkflow)

// Tag is one node of a classification tree: a category that may have
// child categories of its own.
type Tag struct {
	Name     string
	Children []*Tag
}

// IsTerminal reports whether this tag has no further children to recurse
// into.
func (t *Tag) IsTerminal() bool { return len(t.Children) == 0 }

// Criteria describes what is being classified and the instructions
// guiding classification.
type Criteria struct {
	EntityDefinition string
	Instructions     string
}

// LinearEntityTagger recursively evaluates a tag tree against a piece of
// context text, collecting every terminal tag whose applicability the
// cascade confirms. This is an all-matches tagger: the original's
// commented-out early-termination guard (stopping at the first assigned
// tag) is resolved per §9's explicit instruction to return every match,
// not just the first.
type LinearEntityTagger struct {
	Cascade     *cascade.Engine
	Entity      string
	ContextText string
	Criteria    Criteria

	refinedInstructions string
}

// New builds a tagger sharing c's backing completion engine and request
// template; c must still be in StateOpen.
func New(c *cascade.Engine, entity, contextText string, criteria Criteria) *LinearEntityTagger {
	return &LinearEntityTagger{Cascade: c, Entity: entity, ContextText: contextText, Criteria: criteria}
}

// Run refines entity-specific classification instructions from the
// context text, then recursively evaluates root's subtree, returning
// every terminal tag that applies.
func (lt *LinearEntityTagger) Run(ctx context.Context, root *Tag) ([]*Tag, error) {
	if err := lt.refineInstructions(ctx); err != nil {
		return nil, err
	}

	var assigned []*Tag
	for _, child := range root.Children {
		matches, err := lt.evaluate(ctx, child)
		if err != nil {
			return nil, err
		}
		assigned = append(assigned, matches...)
	}
	log.Debugw("tagger run complete", "entity", lt.Entity, "assigned", len(assigned))
	return assigned, nil
}

func (lt *LinearEntityTagger) refineInstructions(ctx context.Context) error {
	r, err := lt.Cascade.OpenRound(lt.refineInstructionsPrompt())
	if err != nil {
		return err
	}

	if err := lt.Cascade.RunStep(ctx, r, &cascade.Step{
		Kind:         cascade.StepGuidance,
		GuidanceText: fmt.Sprintf("1. Classifying: We are classifying the entity, '%s', from the text.\n", lt.Entity),
	}); err != nil {
		return err
	}
	if err := lt.Cascade.RunStep(ctx, r, &cascade.Step{
		Kind:         cascade.StepGuidance,
		GuidanceText: fmt.Sprintf("2. '%s' Definition: %s\n", lt.Entity, lt.Criteria.EntityDefinition),
	}); err != nil {
		return err
	}

	detailsStep := &cascade.Step{Kind: cascade.StepInference, Stops: cascade.StopWords{Done: "4."}, DynamicSuffix: "\n"}
	if err := lt.Cascade.RunStep(ctx, r, detailsStep); err != nil {
		return err
	}
	instructionsStep := &cascade.Step{Kind: cascade.StepInference, Stops: cascade.StopWords{Done: "5."}, DynamicSuffix: "\n"}
	if err := lt.Cascade.RunStep(ctx, r, instructionsStep); err != nil {
		return err
	}

	lt.refinedInstructions = strings.TrimSpace(instructionsStep.Content())
	if lt.refinedInstructions == "" {
		return fmt.Errorf("tagger: no refined instructions produced")
	}
	r.CloseRound()
	return nil
}

// evaluate decides whether tag applies to the context text and, if so,
// recurses into its children, returning every terminal descendant that
// applies (including tag itself, if it is terminal and applies).
func (lt *LinearEntityTagger) evaluate(ctx context.Context, tag *Tag) ([]*Tag, error) {
	r, err := lt.Cascade.OpenRound(lt.reasonPrompt(tag))
	if err != nil {
		return nil, err
	}

	applicableStep := &cascade.Step{Kind: cascade.StepInference, Stops: cascade.StopWords{Done: "2."}, DynamicSuffix: "\n"}
	if err := lt.Cascade.RunStep(ctx, r, applicableStep); err != nil {
		return nil, err
	}
	detailsStep := &cascade.Step{Kind: cascade.StepInference, Stops: cascade.StopWords{Done: "3."}, DynamicSuffix: "\n"}
	if err := lt.Cascade.RunStep(ctx, r, detailsStep); err != nil {
		return nil, err
	}
	applicabilityStep := &cascade.Step{Kind: cascade.StepInference, Stops: cascade.StopWords{Done: "4."}, DynamicSuffix: "\n"}
	if err := lt.Cascade.RunStep(ctx, r, applicabilityStep); err != nil {
		return nil, err
	}

	if isNoneResult(applicabilityStep.Content()) {
		r.CloseRound()
		return nil, nil
	}

	r.CloseRound()

	if tag.IsTerminal() {
		return []*Tag{tag}, nil
	}

	var matches []*Tag
	for _, child := range tag.Children {
		childMatches, err := lt.evaluate(ctx, child)
		if err != nil {
			return nil, err
		}
		matches = append(matches, childMatches...)
	}
	return matches, nil
}

// isNoneResult mirrors the original tagger's substring check: a None
// result is any response mentioning "none"/"None" rather than naming an
// applicable category.
func isNoneResult(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "none")
}

func (lt *LinearEntityTagger) refineInstructionsPrompt() string {
	return fmt.Sprintf(
		"%s\n\nText:\n'%s'\n\n1. Classifying: State the entity from the 'text' that is being classified.\n\n2. '%s' Definition: Explain what is being classified.\n\n3. Relevant details: List the elements of the input 'text' that are useful and relevant for classification.\n\n4. Specialized instructions: Refine the instructions into a single sentence guide specific to the input 'text'.\n\n5. ",
		lt.Criteria.Instructions, lt.ContextText, lt.Entity,
	)
}

func (lt *LinearEntityTagger) reasonPrompt(tag *Tag) string {
	return fmt.Sprintf(
		"Determine if the '%s' classification category applies to the 'text' using the instructions:\n%s\n\n1. Distill the instructions into an 'is applicable if' sentence specialized for this classification.\n\n2. ",
		tag.Name, lt.refinedInstructions,
	)
}
