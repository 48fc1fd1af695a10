// Package scheduler turns the configured crawl catalog into tasks and
// picks which task runs next. Selection is pure: the scheduler never
// mutates task state, it only reads the snapshots the caller passes in.
package scheduler

import (
	"sort"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/config"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// Scheduler selects crawl tasks by domain weight. Heavier domains are
// crawled first; within a weight tier the task with the fewest fetched
// records wins, so a tier's tasks advance roughly in step.
type Scheduler struct {
	domains []config.DomainConfig
	weights map[string]float64
	caps    map[string]int64
}

// New creates a scheduler over the given catalog.
func New(catalog []config.DomainConfig) *Scheduler {
	s := &Scheduler{
		domains: catalog,
		weights: make(map[string]float64, len(catalog)),
		caps:    make(map[string]int64, len(catalog)),
	}
	for _, d := range catalog {
		s.weights[d.Name] = d.Weight
		s.caps[d.Name] = d.MaxPapers
	}
	return s
}

// Enumerate expands the catalog into one task per (domain, keyword, year
// range) combination, in catalog order. Every combination appears exactly
// once; the checkpoint decides what survives a restart.
func (s *Scheduler) Enumerate() []*domain.CrawlTask {
	var tasks []*domain.CrawlTask
	for _, d := range s.domains {
		for _, keyword := range d.Keywords {
			for _, years := range d.YearRanges {
				tasks = append(tasks, domain.NewCrawlTask(d.Name, keyword, years))
			}
		}
	}
	return tasks
}

// Weight returns the scheduling weight for a domain, zero if unknown.
func (s *Scheduler) Weight(crawlDomain string) float64 {
	return s.weights[crawlDomain]
}

// Cap returns the per-domain record cap, zero meaning uncapped.
func (s *Scheduler) Cap(crawlDomain string) int64 {
	return s.caps[crawlDomain]
}

// Capped reports whether a domain has reached its record cap.
func (s *Scheduler) Capped(crawlDomain string, records int64) bool {
	limit := s.caps[crawlDomain]
	return limit > 0 && records >= limit
}

// Next returns a copy of the best eligible task, or nil when nothing is
// left to schedule. A task is eligible when it is not completed, not in
// the busy set, and its domain has not reached its record cap. Among
// eligible tasks the highest domain weight wins; ties fall to the task
// with the fewest records fetched, then to key order so selection is
// deterministic.
func (s *Scheduler) Next(tasks []domain.CrawlTask, busy map[string]bool, domainRecords map[string]int64) *domain.CrawlTask {
	var best *domain.CrawlTask
	var bestKey string

	for i := range tasks {
		task := tasks[i]
		if task.Completed {
			continue
		}
		key := task.Key()
		if busy[key] {
			continue
		}
		if s.Capped(task.Domain, domainRecords[task.Domain]) {
			continue
		}

		if best == nil || s.better(&task, key, best, bestKey) {
			picked := task
			best = &picked
			bestKey = key
		}
	}

	return best
}

// Pending returns how many tasks remain schedulable, ignoring the busy set.
func (s *Scheduler) Pending(tasks []domain.CrawlTask, domainRecords map[string]int64) int {
	n := 0
	for i := range tasks {
		if tasks[i].Completed {
			continue
		}
		if s.Capped(tasks[i].Domain, domainRecords[tasks[i].Domain]) {
			continue
		}
		n++
	}
	return n
}

// better reports whether candidate should be preferred over the current best.
func (s *Scheduler) better(candidate *domain.CrawlTask, candidateKey string, best *domain.CrawlTask, bestKey string) bool {
	cw, bw := s.weights[candidate.Domain], s.weights[best.Domain]
	if cw != bw {
		return cw > bw
	}
	if candidate.RecordsFetched != best.RecordsFetched {
		return candidate.RecordsFetched < best.RecordsFetched
	}
	return candidateKey < bestKey
}

// Progress summarizes per-domain completion for status reporting, ordered
// by descending weight then name.
func (s *Scheduler) Progress(tasks []domain.CrawlTask, domainRecords map[string]int64) []domain.DomainProgress {
	byDomain := make(map[string]*domain.DomainProgress, len(s.domains))
	for _, d := range s.domains {
		byDomain[d.Name] = &domain.DomainProgress{
			Domain:     d.Name,
			Records:    domainRecords[d.Name],
			MaxRecords: d.MaxPapers,
		}
	}

	for i := range tasks {
		p, ok := byDomain[tasks[i].Domain]
		if !ok {
			// Task from a domain no longer in the catalog; still report it.
			p = &domain.DomainProgress{Domain: tasks[i].Domain, Records: domainRecords[tasks[i].Domain]}
			byDomain[tasks[i].Domain] = p
		}
		p.TotalTasks++
		if tasks[i].Completed {
			p.CompletedTasks++
		}
	}

	progress := make([]domain.DomainProgress, 0, len(byDomain))
	for _, p := range byDomain {
		if p.MaxRecords > 0 {
			p.Percent = 100 * float64(p.Records) / float64(p.MaxRecords)
		}
		progress = append(progress, *p)
	}

	sort.Slice(progress, func(i, j int) bool {
		wi, wj := s.weights[progress[i].Domain], s.weights[progress[j].Domain]
		if wi != wj {
			return wi > wj
		}
		return progress[i].Domain < progress[j].Domain
	})

	return progress
}
