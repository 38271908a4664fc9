package logger

// Logger is the component-keyed structured logger used across the pipeline.
type Logger interface {
	Debug(component string, message string, fields map[string]interface{})
	Info(component string, message string, fields map[string]interface{})
	Warning(component string, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (n NoOpLogger) Debug(component string, message string, fields map[string]interface{})   {}
func (n NoOpLogger) Info(component string, message string, fields map[string]interface{})    {}
func (n NoOpLogger) Warning(component string, message string, fields map[string]interface{}) {}
func (n NoOpLogger) Error(component string, err error, fields map[string]interface{})        {}
