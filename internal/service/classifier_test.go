package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/crm-backend/internal/domain"
)

func TestClassifyTicket(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		desc     string
		expected domain.TicketCategory
	}{
		{"urgent outage is a complaint", "СРОЧНО не работает сервис", "", domain.CategoryComplaint},
		{"pricing question is sales", "Хочу купить подписку, какая цена?", "", domain.CategorySales},
		{"refund wording", "Требую возврат средств", "", domain.CategoryComplaint},
		{"plain question", "Вопрос по настройке профиля", "", domain.CategoryQuestion},
		{"request wording", "Прошу выслать документы", "", domain.CategoryRequest},
		{"error report", "Появляется ошибка при входе", "", domain.CategoryTechnical},
		{"english bug report", "Login page shows an error", "", domain.CategoryTechnical},
		{"keyword in description only", "Обращение", "Хочу оформить тариф подороже", domain.CategorySales},
		{"nothing matches", "Здравствуйте", "Просто текст", domain.CategoryOther},
		{"complaint beats sales on mixed text", "Жалоба: оплата не прошла", "", domain.CategoryComplaint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyTicket(tt.title, tt.desc))
		})
	}
}

func TestPrioritizeTicket(t *testing.T) {
	tests := []struct {
		name     string
		category domain.TicketCategory
		title    string
		expected int
	}{
		{"complaint is always top priority", domain.CategoryComplaint, "всё плохо", 5},
		{"urgent marker lifts any category", domain.CategoryQuestion, "срочно подскажите", 5},
		{"sales is medium", domain.CategorySales, "купить подписку", 3},
		{"request is medium", domain.CategoryRequest, "прошу выслать счёт", 3},
		{"important marker lifts to medium", domain.CategoryOther, "это важно", 3},
		{"question is low", domain.CategoryQuestion, "как поменять пароль", 1},
		{"other is low", domain.CategoryOther, "привет", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PrioritizeTicket(tt.category, tt.title, ""))
		})
	}
}

func TestClassifyAndPrioritizeScenarios(t *testing.T) {
	title := "СРОЧНО не работает сервис"
	category := ClassifyTicket(title, "")
	assert.Equal(t, domain.CategoryComplaint, category)
	assert.Equal(t, 5, PrioritizeTicket(category, title, ""))

	title = "Хочу купить подписку, какая цена?"
	category = ClassifyTicket(title, "")
	assert.Equal(t, domain.CategorySales, category)
	assert.Equal(t, 3, PrioritizeTicket(category, title, ""))
}
