package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writePromptFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to create prompt file %s: %v", name, err)
	}
	return path
}

func TestLoadPromptsFromFiles(t *testing.T) {
	tempDir := t.TempDir()

	systemPromptContent := "Test system prompt for job matching"
	userPromptContent := "Test user prompt template: {{resume}} and {{job}}"

	systemPromptFile := writePromptFile(t, tempDir, "system.analyze.md", systemPromptContent)
	userPromptFile := writePromptFile(t, tempDir, "user.analyze.md", "\n  "+userPromptContent+"  \n")

	config := &Config{
		AI: AIConfig{
			Analyze: OperationAIConfig{
				CustomPrompts: PromptConfig{
					SystemPrompts: PromptTexts{AnalyzeJobFile: systemPromptFile},
					UserPrompts:   PromptTexts{AnalyzeJobFile: userPromptFile},
				},
			},
		},
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	if config.Prompts.Analyze.SystemPrompts.AnalyzeJob != systemPromptContent {
		t.Errorf("Expected loaded system prompt content '%s', got '%s'",
			systemPromptContent, config.Prompts.Analyze.SystemPrompts.AnalyzeJob)
	}

	if config.Prompts.Analyze.UserPrompts.AnalyzeJob != userPromptContent {
		t.Errorf("Expected trimmed user prompt content '%s', got '%s'",
			userPromptContent, config.Prompts.Analyze.UserPrompts.AnalyzeJob)
	}

	// File paths stay untouched
	if config.AI.Analyze.CustomPrompts.SystemPrompts.AnalyzeJobFile != systemPromptFile {
		t.Error("Expected system prompt file path to be preserved")
	}

	// Loaded prompts are per config instance
	other := &Config{}
	if err := other.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts for empty config: %v", err)
	}
	if other.Prompts.Analyze.SystemPrompts.AnalyzeJob != "" {
		t.Error("Expected no prompts to leak between config instances")
	}
}

func TestValidatePromptFiles(t *testing.T) {
	tempDir := t.TempDir()
	validFile := writePromptFile(t, tempDir, "valid.md", "Valid content")

	config := &Config{
		AI: AIConfig{
			Parse: OperationAIConfig{
				CustomPrompts: PromptConfig{
					SystemPrompts: PromptTexts{ParseResumeFile: validFile},
				},
			},
		},
	}

	if err := config.validatePromptFiles(); err != nil {
		t.Errorf("Expected validation to pass for valid file, got error: %v", err)
	}

	config.AI.Parse.CustomPrompts.SystemPrompts.ParseResumeFile = filepath.Join(tempDir, "nonexistent.md")

	if err := config.validatePromptFiles(); err == nil {
		t.Error("Expected validation to fail for non-existent file")
	}
}

func TestLoadPromptFromFile(t *testing.T) {
	tempDir := t.TempDir()

	content := "Test prompt content"
	testFile := writePromptFile(t, tempDir, "test.md", content)

	loadedContent, err := loadPromptFromFile(testFile, "system", PromptParseResume)
	if err != nil {
		t.Fatalf("Failed to load prompt from file: %v", err)
	}
	if loadedContent != content {
		t.Errorf("Expected content '%s', got '%s'", content, loadedContent)
	}

	emptyFile := writePromptFile(t, tempDir, "empty.md", "  \n")
	if _, err := loadPromptFromFile(emptyFile, "system", PromptParseResume); err == nil {
		t.Error("Expected error for empty file")
	}

	if _, err := loadPromptFromFile(filepath.Join(tempDir, "nonexistent.md"), "system", PromptParseResume); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestResolvePrompt(t *testing.T) {
	tempDir := t.TempDir()
	opFile := writePromptFile(t, tempDir, "op.md", "operation file prompt")
	globalFile := writePromptFile(t, tempDir, "global.md", "global file prompt")

	config := &Config{
		AI: AIConfig{
			CustomPrompts: PromptConfig{
				SystemPrompts: PromptTexts{
					AnalyzeJob:           "global inline system",
					AnalyzeGeneratedFile: globalFile,
				},
				UserPrompts: PromptTexts{ParseResume: "global inline user"},
			},
			Analyze: OperationAIConfig{
				CustomPrompts: PromptConfig{
					SystemPrompts: PromptTexts{AnalyzeJobFile: opFile},
					UserPrompts:   PromptTexts{AnalyzeGenerated: "operation inline user"},
				},
			},
		},
	}
	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts: %v", err)
	}

	tests := []struct {
		name       string
		operation  string
		prompt     string
		wantSystem string
		wantUser   string
	}{
		{"operation file beats global inline", OperationAnalyze, PromptAnalyzeJob, "operation file prompt", ""},
		{"global file and operation inline", OperationAnalyze, PromptAnalyzeGenerated, "global file prompt", "operation inline user"},
		{"global inline for other operation", OperationParse, PromptParseResume, "", "global inline user"},
		{"global inline system for parse op", OperationParse, PromptAnalyzeJob, "global inline system", ""},
		{"unknown operation uses globals", "unknown", PromptAnalyzeGenerated, "global file prompt", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, user := config.ResolvePrompt(tt.operation, tt.prompt)
			if system != tt.wantSystem {
				t.Errorf("system = %q, want %q", system, tt.wantSystem)
			}
			if user != tt.wantUser {
				t.Errorf("user = %q, want %q", user, tt.wantUser)
			}
		})
	}
}
