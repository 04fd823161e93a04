package service

import (
	"strings"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// Keyword sets for ticket auto-classification. Matching is case-insensitive
// substring search over title plus description; the first matching category
// wins in the listed order.
var categoryKeywords = []struct {
	category domain.TicketCategory
	keywords []string
}{
	{domain.CategoryComplaint, []string{
		"жалоб", "недоволен", "недовольн", "ужасн", "возврат", "обман",
		"не работает", "сломал", "complaint", "refund", "terrible", "not working",
	}},
	{domain.CategorySales, []string{
		"купить", "покупк", "цена", "стоимост", "тариф", "подписк", "оплат",
		"скидк", "buy", "price", "purchase", "subscription",
	}},
	{domain.CategoryQuestion, []string{
		"вопрос", "подскаж", "как ", "почему", "когда", "где",
		"question", "how ", "why ", "when ",
	}},
	{domain.CategoryRequest, []string{
		"прошу", "запрос", "нужно", "нужен", "хочу", "можно ли",
		"request", "please", "need",
	}},
	{domain.CategoryTechnical, []string{
		"ошибк", "баг", "сбой", "не грузится", "зависает", "не открывается",
		"error", "bug", "crash", "broken",
	}},
}

var urgencyKeywords = []string{
	"срочно", "критичн", "не работает", "немедленно",
	"urgent", "critical", "not working", "asap",
}

var importanceKeywords = []string{
	"важно", "important",
}

// ClassifyTicket derives a category from free-form title and description.
// Falls back to CategoryOther when nothing matches.
func ClassifyTicket(title, description string) domain.TicketCategory {
	text := strings.ToLower(title + " " + description)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.category
			}
		}
	}
	return domain.CategoryOther
}

// PrioritizeTicket derives a 0-5 priority from the category and urgency
// markers in the text. Complaints and urgent wording rank highest.
func PrioritizeTicket(category domain.TicketCategory, title, description string) int {
	text := strings.ToLower(title + " " + description)

	if category == domain.CategoryComplaint || containsAny(text, urgencyKeywords) {
		return 5
	}
	if category == domain.CategorySales || category == domain.CategoryRequest || containsAny(text, importanceKeywords) {
		return 3
	}
	if category == domain.CategoryQuestion || category == domain.CategoryOther {
		return 1
	}
	return 0
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
