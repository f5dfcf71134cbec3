package prompt

import "fmt"

// Task is one of the supported code tasks.
type Task string

const (
	TaskGenerate Task = "generate"
	TaskDebug    Task = "debug"
	TaskExplain  Task = "explain"
	TaskOptimize Task = "optimize"
)

// Tasks lists every task in a stable order.
var Tasks = []Task{TaskGenerate, TaskDebug, TaskExplain, TaskOptimize}

// ParseTask validates a task name.
func ParseTask(s string) (Task, error) {
	for _, t := range Tasks {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("prompt: unknown task %q", s)
}

// Build returns the task instruction. For TaskGenerate input is the
// requirements text, for the other tasks it is source code.
func Build(task Task, language, input string) (string, error) {
	switch task {
	case TaskGenerate:
		return fmt.Sprintf("Generate %s code based on the following requirements:\n\n%s\n\n"+
			"Please provide:\n1. Complete, working code\n2. Comments\n3. Imports\n4. Example usage",
			language, input), nil
	case TaskDebug:
		return fmt.Sprintf("Analyze the following %s code for bugs and improvements:\n%s\n"+
			"Give syntax errors, logic issues, and suggestions.",
			language, fence(language, input)), nil
	case TaskExplain:
		return fmt.Sprintf("Explain this %s code step by step:\n%s", language, fence(language, input)), nil
	case TaskOptimize:
		return fmt.Sprintf("Optimize the following %s code:\n%s\n"+
			"Give performance improvements and a better version.",
			language, fence(language, input)), nil
	default:
		return "", fmt.Errorf("prompt: unknown task %q", task)
	}
}

func fence(language, code string) string {
	return "```" + language + "\n" + code + "\n```"
}
