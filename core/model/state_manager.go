package model

import (
	"sync"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Estimators hold it by composition instead of embedding a base struct.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	// Public for gob encoding
	NFeatures int
	NSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted with the dimensions seen during Fit.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// RequireFitted returns a NotFittedError if the model has not been fitted,
// and a ShapeMismatchError if X does not have the training feature count.
func (s *StateManager) RequireFitted(modelName, method string, X interface{ Dims() (int, int) }) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.Fitted {
		return errors.NewNotFittedError(modelName, method)
	}
	if X == nil {
		return nil
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.NewValueError(modelName+"."+method, "empty input")
	}
	if cols != s.NFeatures {
		return errors.NewShapeMismatchError(modelName+"."+method, s.NFeatures, cols, 1)
	}
	return nil
}
