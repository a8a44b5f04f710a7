package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Prompt names, shared by inline and file-based prompt settings
const (
	PromptAnalyzeJob       = "analyzeJob"
	PromptAnalyzeGenerated = "analyzeGenerated"
	PromptParseResume      = "parseResume"
)

var promptNames = []string{PromptAnalyzeJob, PromptAnalyzeGenerated, PromptParseResume}

// LoadedPromptTexts holds prompt content read from files, per prompt name
type LoadedPromptTexts struct {
	AnalyzeJob       string
	AnalyzeGenerated string
	ParseResume      string
}

// OperationLoadedPrompts holds loaded prompts for one configuration scope
type OperationLoadedPrompts struct {
	SystemPrompts LoadedPromptTexts
	UserPrompts   LoadedPromptTexts
}

// LoadedPrompts holds all file-based prompts, global and per operation
type LoadedPrompts struct {
	Global  OperationLoadedPrompts
	Analyze OperationLoadedPrompts
	Parse   OperationLoadedPrompts
}

func (p PromptTexts) inline(name string) string {
	switch name {
	case PromptAnalyzeJob:
		return p.AnalyzeJob
	case PromptAnalyzeGenerated:
		return p.AnalyzeGenerated
	case PromptParseResume:
		return p.ParseResume
	}
	return ""
}

func (p PromptTexts) file(name string) string {
	switch name {
	case PromptAnalyzeJob:
		return p.AnalyzeJobFile
	case PromptAnalyzeGenerated:
		return p.AnalyzeGeneratedFile
	case PromptParseResume:
		return p.ParseResumeFile
	}
	return ""
}

func (l LoadedPromptTexts) get(name string) string {
	switch name {
	case PromptAnalyzeJob:
		return l.AnalyzeJob
	case PromptAnalyzeGenerated:
		return l.AnalyzeGenerated
	case PromptParseResume:
		return l.ParseResume
	}
	return ""
}

func (l *LoadedPromptTexts) set(name, content string) {
	switch name {
	case PromptAnalyzeJob:
		l.AnalyzeJob = content
	case PromptAnalyzeGenerated:
		l.AnalyzeGenerated = content
	case PromptParseResume:
		l.ParseResume = content
	}
}

// promptScope pairs a configured prompt section with the place its files load into
type promptScope struct {
	label  string
	config *PromptConfig
	loaded *OperationLoadedPrompts
}

func (c *Config) promptScopes() []promptScope {
	return []promptScope{
		{"global", &c.AI.CustomPrompts, &c.Prompts.Global},
		{OperationAnalyze, &c.AI.Analyze.CustomPrompts, &c.Prompts.Analyze},
		{OperationParse, &c.AI.Parse.CustomPrompts, &c.Prompts.Parse},
	}
}

// ResolvePrompt returns the custom system and user prompt for an operation.
// Priority: operation file, operation inline, global file, global inline.
// An empty string means the built-in default applies.
func (c *Config) ResolvePrompt(operation, name string) (system, user string) {
	var opConfig *PromptConfig
	var opLoaded *OperationLoadedPrompts
	switch operation {
	case OperationAnalyze:
		opConfig, opLoaded = &c.AI.Analyze.CustomPrompts, &c.Prompts.Analyze
	case OperationParse:
		opConfig, opLoaded = &c.AI.Parse.CustomPrompts, &c.Prompts.Parse
	default:
		opConfig, opLoaded = &PromptConfig{}, &OperationLoadedPrompts{}
	}
	global, globalLoaded := &c.AI.CustomPrompts, &c.Prompts.Global

	system = firstNonEmpty(
		opLoaded.SystemPrompts.get(name),
		opConfig.SystemPrompts.inline(name),
		globalLoaded.SystemPrompts.get(name),
		global.SystemPrompts.inline(name),
	)
	user = firstNonEmpty(
		opLoaded.UserPrompts.get(name),
		opConfig.UserPrompts.inline(name),
		globalLoaded.UserPrompts.get(name),
		global.UserPrompts.inline(name),
	)
	return system, user
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	c.Prompts = LoadedPrompts{}
	count := 0

	for _, scope := range c.promptScopes() {
		for _, name := range promptNames {
			if path := scope.config.SystemPrompts.file(name); path != "" {
				content, err := loadPromptFromFile(path, scope.label+" system", name)
				if err != nil {
					return err
				}
				scope.loaded.SystemPrompts.set(name, content)
				count++
			}
			if path := scope.config.UserPrompts.file(name); path != "" {
				content, err := loadPromptFromFile(path, scope.label+" user", name)
				if err != nil {
					return err
				}
				scope.loaded.UserPrompts.set(name, content)
				count++
			}
		}
	}

	if count == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", count)
	}

	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, promptType, name string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, name, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, name, absPath)
		}
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, name, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, name, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		promptType, name, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles validates that prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType, name string) {
		if filePath == "" {
			return
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, name, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", promptType, name, absPath))
		}
	}

	for _, scope := range c.promptScopes() {
		for _, name := range promptNames {
			validateFile(scope.config.SystemPrompts.file(name), scope.label+" system", name)
			validateFile(scope.config.UserPrompts.file(name), scope.label+" user", name)
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}
