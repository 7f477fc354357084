package serviceiface

// Service is implemented by every long-running component the app manager controls.
type Service interface {
	Name() string
	Start() error
	Stop() error
}
