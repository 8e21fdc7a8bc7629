package sharepoint

// DemoServices returns sample transport services shown when nobody is
// signed in, so the app stays usable for training and demos.
func DemoServices() []Record {
	return []Record{
		{
			"id":                  "159",
			"data_prelievo":       "02/09/2025",
			"idsocio":             "12345",
			"socio_trasportato":   "ASTUTI GUIDO",
			"ora_inizio":          "08:00",
			"comune_prelievo":     "ROMA",
			"luogo_prelievo":      "VIA ROMA 123",
			"tipo_servizio":       "STANDARD",
			"richiedente":         "SOCIO",
			"motivazione":         "Visita medica",
			"ora_arrivo":          "09:30",
			"comune_destinazione": "ROMA",
			"luogo_destinazione":  "OSPEDALE SANTO SPIRITO",
			"pagamento":           "0,00 €",
			"stato_incasso":       "DA INCASSARE",
			"operatore":           "ANDREAZZA MARIA",
			"mezzo_usato":         "FIAT PANDA (3)",
			"km":                  "15",
			"tipo_pagamento":      "CONTANTI",
			"stato_servizio":      "ESEGUITO",
		},
		{
			"id":                  "160",
			"data_prelievo":       "03/09/2025",
			"idsocio":             "67890",
			"socio_trasportato":   "BIANCHI ANNA",
			"ora_inizio":          "10:15",
			"comune_prelievo":     "ROMA",
			"luogo_prelievo":      "VIA DEI GIGLI 4",
			"tipo_servizio":       "CARROZZINA",
			"carrozzina":          "SI",
			"richiedente":         "FAMILIARE",
			"motivazione":         "Terapia",
			"comune_destinazione": "ROMA",
			"luogo_destinazione":  "POLICLINICO GEMELLI",
			"stato_incasso":       "DA INCASSARE",
			"operatore":           "ROSSI PAOLO",
			"mezzo_usato":         "FIAT DUCATO (1)",
			"km":                  "22",
			"tipo_pagamento":      "BONIFICO",
			"stato_servizio":      "PROGRAMMATO",
		},
	}
}
