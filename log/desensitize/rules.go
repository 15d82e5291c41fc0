package desensitize

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// Rule 脱敏规则接口
type Rule interface {
	// Name 返回规则名称
	Name() string
	// Enabled 返回规则是否启用
	Enabled() bool
	// SetEnabled 设置规则启用状态
	SetEnabled(enabled bool)
	// Process 对字符串进行脱敏处理
	Process(s string) string
}

// toggle 规则共用的名称与开关
type toggle struct {
	name     string
	disabled atomic.Bool
}

func (t *toggle) Name() string {
	return t.name
}

func (t *toggle) Enabled() bool {
	return !t.disabled.Load()
}

func (t *toggle) SetEnabled(enabled bool) {
	t.disabled.Store(!enabled)
}

// ContentRule 基于内容匹配的脱敏规则
type ContentRule struct {
	toggle
	pattern     *regexp.Regexp
	replacement string
}

// NewContentRule 创建基于内容匹配的脱敏规则
func NewContentRule(name, pattern, replacement string) (*ContentRule, error) {
	if name == "" || pattern == "" {
		return nil, fmt.Errorf("rule name and pattern are required")
	}

	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	return &ContentRule{
		toggle:      toggle{name: name},
		pattern:     regex,
		replacement: replacement,
	}, nil
}

// MustNewContentRule 用于内置规则，失败时 panic
func MustNewContentRule(name, pattern, replacement string) *ContentRule {
	rule, err := NewContentRule(name, pattern, replacement)
	if err != nil {
		panic(err)
	}
	return rule
}

func (r *ContentRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}
	return r.pattern.ReplaceAllString(s, r.replacement)
}

// FieldRule 针对 JSON 字符串字段值的脱敏规则
type FieldRule struct {
	toggle
	fieldName   string
	valueRegex  *regexp.Regexp
	replacement string
	jsonPattern *regexp.Regexp
}

// NewFieldRule 创建基于字段名匹配的脱敏规则
func NewFieldRule(name, fieldName, pattern, replacement string) (*FieldRule, error) {
	if name == "" || fieldName == "" || pattern == "" {
		return nil, fmt.Errorf("rule name, field name and pattern are required")
	}

	valueRegex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid field pattern %q: %w", pattern, err)
	}

	return &FieldRule{
		toggle:      toggle{name: name},
		fieldName:   fieldName,
		valueRegex:  valueRegex,
		replacement: replacement,
		jsonPattern: regexp.MustCompile(`"` + regexp.QuoteMeta(fieldName) + `"\s*:\s*"([^"]*)"`),
	}, nil
}

// MustNewFieldRule 用于内置规则，失败时 panic
func MustNewFieldRule(name, fieldName, pattern, replacement string) *FieldRule {
	rule, err := NewFieldRule(name, fieldName, pattern, replacement)
	if err != nil {
		panic(err)
	}
	return rule
}

func (r *FieldRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}

	return r.jsonPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := r.jsonPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		// 只替换值，保留字段名
		return `"` + r.fieldName + `":"` + r.valueRegex.ReplaceAllString(sub[1], r.replacement) + `"`
	})
}
