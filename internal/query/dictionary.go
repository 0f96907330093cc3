package query

import "strings"

// drugVariants maps a canonical generic drug name to the spellings under
// which users actually type it: transliterations, common misspellings, and
// Latin forms. The canonical name itself is always an implicit variant.
var drugVariants = map[string][]string{
	"парацетамол": {
		"парацетомол", "парацитамол", "парацетамoл", "paracetamol", "парацетамол",
	},
	"ибупрофен": {
		"ибупрофэн", "ебупрофен", "ibuprofen", "ибупрофен",
	},
	"аспирин": {
		"acпирин", "аспірин", "aspirin", "ацетилсалициловая кислота",
	},
	"пантопразол": {
		"pantoprazole", "пантапразол",
	},
	"омепразол": {
		"omeprazole", "омепразoл",
	},
	"амоксициллин": {
		"амоксицилин", "amoxicillin",
	},
	"азитромицин": {
		"азитромiцин", "azithromycin",
	},
	"лоратадин": {
		"лоратадін", "loratadine",
	},
	"диклофенак": {
		"діклофенак", "diclofenac",
	},
	"дротаверин": {
		"дротаверін", "drotaverine",
	},
	"цитрамон": {
		"citramon", "цитрамoн",
	},
	"анальгин": {
		"анальгін", "analgin", "метамизол",
	},
}

// brandSynonyms maps a generic drug name to its registered trade names.
// A query for the generic must also surface its brands and vice versa.
var brandSynonyms = map[string][]string{
	"ибупрофен":   {"Ибумон", "Гофен", "Нурофен", "Имет"},
	"парацетамол": {"Панадол", "Эффералган", "Рапидол"},
	"аспирин":     {"Упсарин", "Аспетер"},
	"пантопразол": {"Контролок", "Нольпаза"},
	"омепразол":   {"Омез", "Гасек"},
	"азитромицин": {"Сумамед", "Азимед"},
	"лоратадин":   {"Кларитин", "Лорано"},
	"диклофенак":  {"Вольтарен", "Диклоберл"},
	"дротаверин":  {"Но-шпа", "Нош-па"},
}

// brandToGeneric is the reverse index, built once at init.
var brandToGeneric = func() map[string]string {
	idx := make(map[string]string)
	for generic, brands := range brandSynonyms {
		for _, b := range brands {
			idx[strings.ToLower(b)] = generic
		}
	}
	return idx
}()

// DrugTerms returns every term that identifies the given canonical drug:
// the canonical name, its spelling variants, and its brand names. Used both
// for candidate pre-filtering and for ranking identity checks.
func DrugTerms(canonical string) []string {
	terms := []string{canonical}
	seen := map[string]struct{}{canonical: {}}
	for _, v := range drugVariants[canonical] {
		lower := strings.ToLower(v)
		if _, dup := seen[lower]; !dup {
			seen[lower] = struct{}{}
			terms = append(terms, lower)
		}
	}
	for _, b := range brandSynonyms[canonical] {
		lower := strings.ToLower(b)
		if _, dup := seen[lower]; !dup {
			seen[lower] = struct{}{}
			terms = append(terms, lower)
		}
	}
	return terms
}

// MatchesDrug reports whether the given product text (name or generic name)
// identifies the canonical drug, through any of its variants or brands.
func MatchesDrug(productText, canonical string) bool {
	lower := strings.ToLower(productText)
	for _, term := range DrugTerms(canonical) {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
