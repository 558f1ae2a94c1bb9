package engine

import (
	"github.com/Veraticus/remitos/internal/model"
)

// PageObserver is notified as each page receives its outcome.
type PageObserver interface {
	PageClassified(result model.PageResult)
}

// PageObserverFunc adapts a function to the PageObserver interface.
type PageObserverFunc func(result model.PageResult)

// PageClassified calls f(result).
func (f PageObserverFunc) PageClassified(result model.PageResult) {
	f(result)
}
