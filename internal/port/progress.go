package port

// Progress receives stage progress for display.
type Progress interface {
	Start(stage string, total int)
	Add(stage string, n int)
	Finish(stage string)
}

// NopProgress discards all progress updates.
type NopProgress struct{}

func (NopProgress) Start(string, int) {}
func (NopProgress) Add(string, int)   {}
func (NopProgress) Finish(string)     {}
