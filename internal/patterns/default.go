package patterns

import "github.com/ppiankov/askiguard/internal/model"

// DefaultTables contains the shipped pattern tables. Matching is
// case-insensitive substring containment.
var DefaultTables = Tables{
	Safe: []string{
		"я не могу",
		"у меня нет возможности",
		"у меня нет доступа",
		"не имею доступа",
		"я не уверена",
		"я не уверен",
		"не знаю точно",
		"к сожалению, я не",
		"могу поставить напоминание",
		"могу сохранить заметку",
	},
	FakeCapabilities: []string{
		"я могу позвонить",
		"я позвоню",
		"я позвонила",
		"я позвонил",
		"позвоню за тебя",
		"я отправила письмо",
		"я отправил письмо",
		"отправлю письмо за тебя",
		"я отправила смс",
		"я написала ему",
		"я написала ей",
		"я забронировала",
		"я забронировал",
		"забронирую для тебя",
		"я заказала",
		"закажу для тебя",
		"я оплатила",
		"я оплачу",
		"я вижу тебя",
		"я открыла приложение",
		"я зашла на сайт",
		"я проверила твою почту",
		"i can call",
		"i will call",
		"i have booked",
	},
	FalsePromises: []string{
		"обещаю",
		"гарантирую",
		"даю слово",
		"на 100%",
		"стопроцентно",
		"никогда не забуду",
		"запомню навсегда",
		"всегда буду помнить",
		"точно не подведу",
		"i promise",
		"i guarantee",
	},
	ArchitectureLeak: []string{
		"системный промпт",
		"системная инструкция",
		"мои инструкции",
		"system prompt",
		"anthropic",
		"openai",
		"claude",
		"gpt-4",
		"gpt-3",
		"языковая модель",
		"language model",
		"supabase",
		"elevenlabs",
		"api key",
		"api-ключ",
		"cortex",
		"homer",
	},
	HallucinationMarkers: []string{
		"ты говорил",
		"ты говорила",
		"ты упоминал",
		"ты упоминала",
		"ты рассказывал",
		"ты рассказывала",
		"как ты сказал",
		"как ты сказала",
		"ты просил",
		"ты просила",
		"в прошлый раз ты",
		"ты сохранил",
		"ты сохранила",
		"в твоих заметках",
		"you mentioned",
		"you told me",
	},
	Manipulation: []string{
		"только я тебя понимаю",
		"никому не говори",
		"не говори никому",
		"тебе никто не поможет",
		"без меня ты",
		"ты мне должен",
		"ты мне должна",
		"срочно переведи",
		"если ты меня любишь",
		"ты пожалеешь",
	},
}

// DefaultFallbacks are the canned texts shown instead of blocked output.
// They never echo any part of the blocked text.
var DefaultFallbacks = map[model.Reason]string{
	model.ReasonTooLong:          "Ответ получился слишком длинным. Давай я попробую сказать короче?",
	model.ReasonInputTooLong:     "Сообщение слишком длинное. Попробуй разбить его на несколько частей.",
	model.ReasonFakeCapability:   "Сама я этого сделать не могу, но могу поставить напоминание или сохранить заметку, чтобы ты не забыл.",
	model.ReasonFalsePromise:     "Я постараюсь помочь, но не могу ничего гарантировать.",
	model.ReasonArchitectureLeak: "Об этом я рассказать не могу. Давай вернёмся к твоему вопросу.",
	model.ReasonHallucination:    "Я не нахожу этого в нашем разговоре. Можешь напомнить, о чём речь?",
	model.ReasonManipulation:     "Давай я перефразирую. Чем я могу помочь?",
	model.ReasonLearnedPattern:   "Давай я отвечу по-другому. Чем я могу помочь?",
	model.ReasonUnavailable:      "Сейчас я не могу проверить ответ. Попробуй ещё раз чуть позже.",
}
