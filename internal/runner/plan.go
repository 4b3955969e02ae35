package runner

import (
	"fmt"
	"time"

	"newsflow/internal/core"
	"newsflow/internal/sources"
)

// plan is the validated execution context for one pipeline.
type plan struct {
	class      core.PipelineClass
	filters    core.PipelineFilters
	writer     core.PipelineWriter
	delivery   core.Delivery
	categories []string // Effective category filter, always a class subset
	sourceKeys []string // Source keys the pipeline may read
	rescued    []string // Allow-listed sources kept despite the category filter
}

// validate enforces the class-compatibility invariants and resolves the
// effective category and source sets. The class always dominates: a source
// allow-list entry cannot rescue a category the class forbids.
func (r *Runner) validate(p core.Pipeline) (*plan, error) {
	class, err := r.store.GetPipelineClass(p.ClassID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, fmt.Errorf("pipeline class %d not found", p.ClassID)
	}

	if !contains(class.Evaluators, p.EvaluatorKey) {
		return nil, fmt.Errorf("evaluator %q not allowed by class %q", p.EvaluatorKey, class.Key)
	}

	writer, err := r.store.GetPipelineWriter(p.ID)
	if err != nil {
		return nil, err
	}
	if writer == nil {
		return nil, fmt.Errorf("pipeline %d has no writer configured", p.ID)
	}
	if !contains(class.Writers, writer.Type) {
		return nil, fmt.Errorf("writer %q not allowed by class %q", writer.Type, class.Key)
	}

	filters, err := r.store.GetPipelineFilters(p.ID)
	if err != nil {
		return nil, err
	}
	if filters == nil {
		filters = &core.PipelineFilters{PipelineID: p.ID, AllCategories: true, AllSources: true}
	}

	var categories []string
	if filters.AllCategories {
		categories = append([]string(nil), class.Categories...)
	} else {
		for _, c := range filters.Categories {
			if !contains(class.Categories, c) {
				return nil, fmt.Errorf("category %q not allowed by class %q", c, class.Key)
			}
			categories = append(categories, c)
		}
	}

	delivery, err := r.store.GetDelivery(p.ID)
	if err != nil {
		return nil, err
	}
	if !delivery.Valid() {
		return nil, fmt.Errorf("pipeline %d must have exactly one delivery transport", p.ID)
	}

	sourceKeys, rescued, err := r.permittedSources(class, filters)
	if err != nil {
		return nil, err
	}

	return &plan{
		class:      *class,
		filters:    *filters,
		writer:     *writer,
		delivery:   delivery,
		categories: categories,
		sourceKeys: sourceKeys,
		rescued:    rescued,
	}, nil
}

// permittedSources lists enabled sources whose category the class allows
// and that pass the pipeline's category/source filter. include_src can
// rescue a source excluded by the explicit category set but never one
// outside the class categories. Rescued keys are returned separately so the
// candidate queries can exempt their articles from the category filter.
func (r *Runner) permittedSources(class *core.PipelineClass, filters *core.PipelineFilters) (keys, rescued []string, err error) {
	if err := r.syncRegistry(); err != nil {
		return nil, nil, err
	}

	all, err := r.store.ListSources(true)
	if err != nil {
		return nil, nil, err
	}

	for _, src := range all {
		if !contains(class.Categories, src.CategoryKey) {
			continue
		}
		if !filters.AllCategories && !contains(filters.Categories, src.CategoryKey) {
			if !contains(filters.IncludeSources, src.Key) {
				continue
			}
			rescued = append(rescued, src.Key)
		}
		keys = append(keys, src.Key)
	}
	return keys, rescued, nil
}

// syncRegistry materializes a source row for every registered adapter that
// has none yet, so planning sees the full registry.
func (r *Runner) syncRegistry() error {
	for _, key := range sources.Keys() {
		existing, err := r.store.GetSourceByKey(key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		adapter, _ := sources.Lookup(key)
		if _, err := r.store.UpsertSource(core.Source{
			Key:         key,
			Label:       key,
			CategoryKey: adapter.Category(),
			Enabled:     true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// collectWindow is how fresh a source run must be to skip re-collection.
const collectWindow = 2 * time.Hour

// planCollect keeps only sources whose last run is stale or absent.
func (r *Runner) planCollect(sourceKeys []string) ([]string, error) {
	window := collectWindow
	if d := r.cfg.Runner.CollectWindow; d != "" {
		if parsed, err := time.ParseDuration(d); err == nil {
			window = parsed
		}
	}
	cutoff := r.now().UTC().Add(-window)

	var due []string
	for _, key := range sourceKeys {
		src, err := r.store.GetSourceByKey(key)
		if err != nil {
			return nil, err
		}
		if src == nil {
			continue
		}
		run, err := r.store.GetSourceRun(src.ID)
		if err != nil {
			return nil, err
		}
		if run == nil || run.LastRunAt.Before(cutoff) {
			due = append(due, key)
		}
	}
	return due, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
