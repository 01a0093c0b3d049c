package db

import "github.com/opst/prodplan/pkg/domain"

// AssignIds gives new ids to the job and entities with temporary ids, and rewrites references.
//
// Products and job steps refer each other with temporary ids (see domain.TemporaryId) before they are persisted.
// References to persisted entities are kept as they are.
//
// Args
//
// - *domain.Job: job to be persisted. Ids of the job, its steps and their queries are assigned.
//
// - []domain.Product: products created for the job. They are updated in place.
//
// - func() string: id generator
func AssignIds(job *domain.Job, products []domain.Product, newId func() string) {
	assigned := map[string]string{}
	idOf := func(id string) string {
		if !domain.IsTemporaryId(id) && id != "" {
			return id
		}
		if a, ok := assigned[id]; ok {
			return a
		}
		a := newId()
		if id != "" {
			assigned[id] = a
		}
		return a
	}
	ref := func(id string) string {
		if a, ok := assigned[id]; ok {
			return a
		}
		return id
	}

	job.Id = idOf(job.Id)
	for i := range products {
		products[i].Id = idOf(products[i].Id)
	}
	for i := range job.Steps {
		job.Steps[i].Id = idOf(job.Steps[i].Id)
	}

	for i := range products {
		p := &products[i]
		p.JobStep = ref(p.JobStep)
		p.EnclosingProduct = ref(p.EnclosingProduct)
		components := make([]string, 0, len(p.ComponentProducts))
		for _, c := range p.ComponentProducts {
			components = append(components, ref(c))
		}
		p.ComponentProducts = components
	}

	for i := range job.Steps {
		step := &job.Steps[i]
		step.Job = job.Id
		step.OutputProduct = ref(step.OutputProduct)
		inputs := make([]string, 0, len(step.InputProducts))
		for _, in := range step.InputProducts {
			inputs = append(inputs, ref(in))
		}
		step.InputProducts = inputs

		queries := make([]domain.ProductQuery, 0, len(step.Queries))
		for _, q := range step.Queries {
			q.Id = idOf(q.Id)
			q.JobStep = step.Id
			satisfying := make([]string, 0, len(q.SatisfyingProducts))
			for _, s := range q.SatisfyingProducts {
				satisfying = append(satisfying, ref(s))
			}
			q.SatisfyingProducts = satisfying
			queries = append(queries, q)
		}
		step.Queries = queries
	}
}
