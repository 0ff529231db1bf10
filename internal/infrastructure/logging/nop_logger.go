package logging

type nopLogger struct{}

// NewNop discards everything. Used by tests.
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Init() {}
func (nopLogger) Debug(Category, SubCategory, string, map[ExtraKey]any) {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Info(Category, SubCategory, string, map[ExtraKey]any) {}
func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warn(Category, SubCategory, string, map[ExtraKey]any) {}
func (nopLogger) Warnf(string, ...any) {}
func (nopLogger) Error(Category, SubCategory, string, map[ExtraKey]any) {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Fatal(Category, SubCategory, string, map[ExtraKey]any) {}
func (nopLogger) Fatalf(string, ...any) {}
