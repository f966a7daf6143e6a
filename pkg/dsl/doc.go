/*
Package dsl builds activity definitions in Go instead of YAML.

The fluent builders produce the same domain.ActivityDefinition the YAML parser
does, and Build runs the document validator over the result. It is handy for
tests and for activities generated at runtime.

	b := dsl.New("sky.yaml")
	intro := b.Section("intro", "Intro")
	intro.Step("welcome", "Welcome").Text("Welcome, {{username}}!")

	ask := intro.Step("sky", "Sky").
		Question("What colour is the sky?").
		Classify("Answer blue or off_topic.")
	ask.On("blue").Say("Correct.").Set("correct", true).Go("outro:bye")
	ask.On("off_topic").Say("Let's stay on topic.")

	b.Section("outro", "Outro").Step("bye", "Bye").Text("Goodbye.")

	loader, err := dsl.Loader(b)
*/
package dsl
