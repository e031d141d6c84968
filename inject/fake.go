package inject

// Fake records injected text in memory. Used by --test-mode and tests.
type Fake struct {
	Texts []string
	Err   error // returned by Inject for non-empty text
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Inject(text string) error {
	if text == "" {
		return nil
	}
	if f.Err != nil {
		return f.Err
	}
	f.Texts = append(f.Texts, text)
	return nil
}
