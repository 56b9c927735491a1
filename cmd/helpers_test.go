package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir string, name string, lines []string) string {
	path := filepath.Join(dir, name)
	content := []byte(joinLines(lines))
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func joinLines(lines []string) string {
	buf := bytes.Buffer{}
	for i, line := range lines {
		buf.WriteString(line)
		if i < len(lines)-1 {
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

func requestLine(model string, tokens int) string {
	return fmt.Sprintf("2025-01-15T10:23:45.123Z  INFO kiro_rs::anthropic::handlers: Received POST /v1/messages request model=%s max_tokens=8192 stream=true message_count=3 estimated_input_tokens=%d", model, tokens)
}

func reductionLine(tokens, saved int) string {
	return fmt.Sprintf("2025-01-15T10:23:45.200Z  INFO kiro_rs::compress: 输入压缩完成 estimated_input_tokens=%d bytes_saved_total=%d whitespace_bytes_saved=%d thinking_bytes_saved=0 tool_result_bytes_saved=0 tool_use_input_bytes_saved=0 history_turns_removed=0 history_bytes_saved=0", tokens, saved, saved)
}

func usageLine(pct float64) string {
	return fmt.Sprintf("2025-01-15T10:23:50.000Z DEBUG kiro_rs::stream: 收到 contextUsageEvent: %.1f%%, 计算 input_tokens: 4000", pct)
}

const rejectionLine = "2025-01-15T10:24:00Z WARN 上游拒绝请求：输入上下文过长 kiro_request_body_bytes=5000000"

func sampleLog() []string {
	return []string{
		requestLine("claude-sonnet-4", 1000),
		"noise",
		reductionLine(1000, 2000),
		usageLine(45.5),
		rejectionLine,
		requestLine("claude-opus-4", 3000),
		reductionLine(3000, 600),
	}
}
