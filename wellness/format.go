package wellness

import (
	"fmt"
	"strings"
)

const (
	heavyRule = "============================================================"
	lightRule = "------------------------------------------------------------"
)

// Format renders a final output for the console.
func Format(out FinalOutput) string {
	var sb strings.Builder
	sb.WriteString(heavyRule + "\n")
	sb.WriteString("MENTAL WELLNESS AGENT RESPONSE\n")
	sb.WriteString(heavyRule + "\n")

	if out.Empathy != "" {
		fmt.Fprintf(&sb, "\nUnderstanding:\n%s\n", out.Empathy)
	}

	if len(out.PracticalSteps) > 0 {
		sb.WriteString("\nPractical Steps:\n")
		for i, step := range out.PracticalSteps {
			obj, ok := step.(map[string]any)
			if !ok {
				fmt.Fprintf(&sb, "   %d. %v\n", i+1, step)
				continue
			}
			title := obj["technique"]
			if title == nil {
				title = obj
			}
			fmt.Fprintf(&sb, "   %d. %v\n", i+1, title)
			if instr, ok := obj["instructions"]; ok {
				fmt.Fprintf(&sb, "      → %v\n", instr)
			}
		}
	}

	if len(out.OptionalResources) > 0 {
		sb.WriteString("\nOptional Resources:\n")
		for _, res := range out.OptionalResources {
			obj, ok := res.(map[string]any)
			if !ok {
				fmt.Fprintf(&sb, "   • %v\n", res)
				continue
			}
			title, ok := obj["title"]
			if !ok {
				title = "Resource"
			}
			fmt.Fprintf(&sb, "   • %v\n", title)
			if src, ok := obj["source"]; ok {
				fmt.Fprintf(&sb, "     Source: %v\n", src)
			}
		}
	}

	if out.Closing != "" {
		fmt.Fprintf(&sb, "\n%s\n", out.Closing)
	}

	disclaimer := out.Disclaimer
	if disclaimer == "" {
		disclaimer = "Not medical advice."
	}
	sb.WriteString("\n" + lightRule + "\n")
	sb.WriteString("DISCLAIMER: " + disclaimer + "\n")
	sb.WriteString(lightRule)
	return sb.String()
}
