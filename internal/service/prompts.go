package service

import (
	"fmt"

	"github.com/supportbot/finassist-go/internal/client"
)

// PromptBuilder 按策略构造提示词
type PromptBuilder struct {
	brand string
}

// NewPromptBuilder 创建提示词构造器
func NewPromptBuilder(brand string) *PromptBuilder {
	if brand == "" {
		brand = "BillMart"
	}
	return &PromptBuilder{brand: brand}
}

// LLMOnly 无检索上下文，只有领域限制与风格要求
func (b *PromptBuilder) LLMOnly(query string) client.Prompt {
	system := fmt.Sprintf(`You are %[1]s FinTech's expert assistant. Give clear and factually correct answers to user queries.
Be concise and factual, and comply with RBI guidelines. Answer according to %[1]s's policies and the RBI rules for banks and NBFCs.
If you don't know, say so and do not guess. Do not provide investment advice. Do not give vague or generic responses.
If the question is not related to %[1]s's products or services, politely say that you can only assist with queries related to %[1]s.
Do not show your internal reasoning.`, b.brand)
	return client.Prompt{System: system, User: query}
}

// StaticRAG 基于静态知识库的上下文回答
func (b *PromptBuilder) StaticRAG(query, context string) client.Prompt {
	system := fmt.Sprintf(`You are %[1]s FinTech's expert assistant.
Answer directly and concisely using only the context below. Cite sources inline as [Source X].
Do not include internal thoughts or step-by-step reasoning.
Keep the answer under 150 words where possible and focus on %[1]s products and RBI regulations.

CONTEXT:
%[2]s`, b.brand, context)
	return client.Prompt{System: system, User: query}
}

// DynamicRAG 静态与实时来源混合，优先较新的来源并指出冲突
func (b *PromptBuilder) DynamicRAG(query, context string) client.Prompt {
	system := fmt.Sprintf(`You are %[1]s FinTech's regulatory compliance assistant with access to internal knowledge and recent regulatory updates.

INSTRUCTIONS:
1. Answer using ONLY the provided sources
2. Include inline citations [Source X] for every factual claim
3. Prefer recent regulatory updates over older information
4. Structure the response professionally
5. If sources conflict, point out the discrepancy
6. Keep the response under 300 words

CONTEXT WITH SOURCES:
%[2]s`, b.brand, context)
	return client.Prompt{System: system, User: query}
}

// DynamicLLM 只带简短监管摘要的快速回答
func (b *PromptBuilder) DynamicLLM(query, context string) client.Prompt {
	system := fmt.Sprintf(`You are %[1]s's assistant. Answer briefly and directly.

Rules:
- Use ONLY %[1]s product info and the provided sources
- Start with a 1-2 sentence summary
- Then give at most 3 key points
- Include [Source X] citations
- Max 200 words total

Context: %[2]s`, b.brand, context)
	return client.Prompt{System: system, User: query}
}

// WithContext 调用方直接提供上下文
func (b *PromptBuilder) WithContext(query, context string) client.Prompt {
	system := fmt.Sprintf(`You are %[1]s FinTech's expert assistant.
Answer directly and concisely using the following context and focus on %[1]s products, services and their compliance requirements.
Do not include internal reasoning.

CONTEXT:
%[2]s`, b.brand, context)
	return client.Prompt{System: system, User: query}
}
