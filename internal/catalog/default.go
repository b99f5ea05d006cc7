package catalog

// Default returns the built-in battery used when no question file is present.
func Default() *Catalog {
	c, err := New(defaultQuestions(), DefaultRegistrationWords)
	if err != nil {
		panic("catalog: invalid built-in battery: " + err.Error())
	}
	return c
}

func defaultQuestions() []Question {
	return []Question{
		{
			ID:        "orientation_day",
			Domain:    "orientation",
			Prompt:    "What day of the week is it today?",
			MaxPoints: 1,
			Keywords:  []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"},
		},
		{
			ID:        "orientation_month",
			Domain:    "orientation",
			Prompt:    "What month is it?",
			MaxPoints: 1,
			Keywords: []string{
				"JANUARY", "FEBRUARY", "MARCH", "APRIL", "MAY", "JUNE",
				"JULY", "AUGUST", "SEPTEMBER", "OCTOBER", "NOVEMBER", "DECEMBER",
			},
		},
		{
			ID:        "recent_events",
			Domain:    "memory",
			Prompt:    "Name any current event that happened recently.",
			MaxPoints: 1,
			Keywords:  []string{"ELECTION", "SPORT", "NEWS", "WEATHER", "FESTIVAL"},
		},
		{
			ID:        "attention_math",
			Domain:    "attention",
			Prompt:    "Please subtract 7 from 100 and tell me the result.",
			MaxPoints: 1,
			Keywords:  []string{"93"},
			Strategy:  MathSubtract{StartMin: 90, StartMax: 120, Decrement: 7},
		},
	}
}
