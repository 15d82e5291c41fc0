package desensitize

import (
	"slices"
	"sync"
)

// Hook 按添加顺序依次应用的脱敏规则集合
type Hook struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewHook 创建脱敏钩子
func NewHook(rules ...Rule) *Hook {
	h := &Hook{}
	h.AddRule(rules...)
	return h
}

// AddRule 添加规则，同名规则会被替换
func (h *Hook) AddRule(rules ...Rule) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if i := h.index(rule.Name()); i >= 0 {
			h.rules[i] = rule
			continue
		}
		h.rules = append(h.rules, rule)
	}
}

// AddContentRule 添加基于内容匹配的脱敏规则
func (h *Hook) AddContentRule(name, pattern, replacement string) error {
	rule, err := NewContentRule(name, pattern, replacement)
	if err != nil {
		return err
	}
	h.AddRule(rule)
	return nil
}

// AddFieldRule 添加基于字段名匹配的脱敏规则
func (h *Hook) AddFieldRule(name, fieldName, pattern, replacement string) error {
	rule, err := NewFieldRule(name, fieldName, pattern, replacement)
	if err != nil {
		return err
	}
	h.AddRule(rule)
	return nil
}

// RemoveRule 移除脱敏规则
func (h *Hook) RemoveRule(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := h.index(name)
	if i < 0 {
		return false
	}
	h.rules = slices.Delete(h.rules, i, i+1)
	return true
}

// GetRule 获取指定规则
func (h *Hook) GetRule(name string) (Rule, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i := h.index(name); i >= 0 {
		return h.rules[i], true
	}
	return nil, false
}

// RuleCount 返回规则数量
func (h *Hook) RuleCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rules)
}

// Desensitize 对字符串进行脱敏处理
func (h *Hook) Desensitize(s string) string {
	if s == "" {
		return s
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, rule := range h.rules {
		s = rule.Process(s)
	}
	return s
}

func (h *Hook) index(name string) int {
	return slices.IndexFunc(h.rules, func(r Rule) bool { return r.Name() == name })
}
