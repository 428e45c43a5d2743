package assistant

import (
	"fmt"
	"math/rand"

	"github.com/zulandar/pyassist/internal/store"
)

// ExampleQuestions are offered to fill the input box.
var ExampleQuestions = []string{
	"How do I read a CSV file in Python?",
	"What is the difference between a list and a tuple?",
	"How do I use a list comprehension?",
	"How do I handle exceptions with try/except?",
	"How do I write a decorator?",
	"What are generators and when should I use them?",
	"How do I make HTTP requests with requests?",
	"How do I sort a list of dictionaries by a key?",
	"How do I use async and await?",
	"How do I create and use a virtual environment?",
}

// CodeTemplate is inserted into the input box on request.
const CodeTemplate = "```python\n" +
	"def example_function():\n" +
	"    print(\"Hello, World!\")\n" +
	"    return True\n" +
	"\n" +
	"result = example_function()\n" +
	"print(f\"Result: {result}\")\n" +
	"```"

// ExampleQuestion puts a random example question into the input box and
// returns it.
func (c *Controller) ExampleQuestion() string {
	q := ExampleQuestions[rand.Intn(len(ExampleQuestions))]
	c.view.SetInput(q)
	return q
}

// InsertCodeTemplate appends the code template to current input and sets
// the result as the new input.
func (c *Controller) InsertCodeTemplate(current string) string {
	text := CodeTemplate
	if current != "" {
		text = current + "\n\n" + CodeTemplate
	}
	c.view.SetInput(text)
	return text
}

func validTheme(t string) bool {
	return t == ThemeDark || t == ThemeLight
}

// Theme returns the current theme.
func (c *Controller) Theme() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// SetTheme switches and persists the theme.
func (c *Controller) SetTheme(theme string) error {
	if !validTheme(theme) {
		return fmt.Errorf("assistant: unknown theme %q", theme)
	}
	c.mu.Lock()
	c.theme = theme
	c.mu.Unlock()
	c.view.SetTheme(theme)
	if c.prefs == nil {
		return nil
	}
	if err := c.prefs.Set(store.KeyTheme, theme); err != nil {
		return fmt.Errorf("assistant: save theme: %w", err)
	}
	return nil
}

// ToggleTheme flips between dark and light and returns the new theme.
func (c *Controller) ToggleTheme() (string, error) {
	next := ThemeLight
	if c.Theme() == ThemeLight {
		next = ThemeDark
	}
	return next, c.SetTheme(next)
}
