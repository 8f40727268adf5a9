package checkout

import (
	log "github.com/sirupsen/logrus"
)

// Step — один прямой шаг оформления заказа и его компенсация.
// Compensate может быть nil для шагов, которые нечего откатывать.
type Step struct {
	Name       string
	Run        func() error
	Compensate func() error
}

// Saga — упорядоченный список шагов. Последовательность отката —
// данные, а не вложенные обработчики ошибок: это позволяет тестировать
// перестановки частичных отказов.
type Saga struct {
	steps  []Step
	logger *log.Entry
}

// NewSaga собирает сагу из шагов.
func NewSaga(logger *log.Entry, steps ...Step) *Saga {
	if logger == nil {
		logger = log.WithField("component", "checkout-saga")
	}
	return &Saga{steps: steps, logger: logger}
}

// Execute выполняет шаги по порядку. При первом отказе запускает
// компенсации завершённых шагов в обратном порядке. Ошибки компенсаций
// логируются, но вызывающему всегда возвращается исходная ошибка.
func (s *Saga) Execute() error {
	for i, step := range s.steps {
		if err := step.Run(); err != nil {
			s.logger.WithError(err).WithField("step", step.Name).Warn("checkout step failed, compensating")
			s.compensate(i - 1)
			return err
		}
	}
	return nil
}

func (s *Saga) compensate(from int) {
	for i := from; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(); err != nil {
			s.logger.WithError(err).WithField("step", step.Name).Error("compensation failed")
		}
	}
}
