package runlog

import (
	"nathanbeddoewebdev/cloudharvest/internal/domain"
	"nathanbeddoewebdev/cloudharvest/internal/logger"
)

// Observer saves every finished pass to a repository. It satisfies
// harvest.Observer.
type Observer struct {
	repo     Repository
	provider string
	log      *logger.Logger
}

func NewObserver(repo Repository, provider string, log *logger.Logger) *Observer {
	if log == nil {
		log = logger.Nop()
	}
	return &Observer{repo: repo, provider: provider, log: log}
}

func (o *Observer) ObserveQuery(domain.ResourceKind, bool) {}

// ObservePass persists the pass. A storage failure is logged and never
// interrupts harvesting.
func (o *Observer) ObservePass(result domain.PassResult) {
	if err := o.repo.Save(FromPass(o.provider, result)); err != nil {
		o.log.WithError(err).Warnw("failed to record pass", "kind", string(result.Kind))
	}
}
