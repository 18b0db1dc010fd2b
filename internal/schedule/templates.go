package schedule

// Week is one templated week and its topics in teaching order.
type Week struct {
	Label  string
	Topics []string
}

var templates = map[string][]Week{
	"A1": {
		{"Week One", []string{"Chapter 0.1 - Lesen & Horen"}},
		{"Week Two", []string{"Chapters 0.2 and 1.1 - Lesen & Horen", "Chapter 1.1 - Schreiben & Sprechen and Chapter 1.2 - Lesen & Horen", "Chapter 2 - Lesen & Horen"}},
		{"Week Three", []string{"Chapter 1.2 - Schreiben & Sprechen (Recap)", "Chapter 2.3 - Schreiben & Sprechen", "Chapter 3 - Lesen & Horen"}},
		{"Week Four", []string{"Chapter 4 - Lesen & Horen", "Chapter 5 - Lesen & Horen", "Chapter 6 - Lesen & Horen and Chapter 2.4 - Schreiben & Sprechen"}},
		{"Week Five", []string{"Chapter 7 - Lesen & Horen", "Chapter 8 - Lesen & Horen", "Chapter 3.5 - Schreiben & Sprechen"}},
		{"Week Six", []string{"Chapter 3.6 - Schreiben & Sprechen", "Chapter 4.7 - Schreiben & Sprechen", "Chapter 9 and 10 - Lesen & Horen"}},
		{"Week Seven", []string{"Chapter 11 - Lesen & Horen", "Chapter 12.1 - Lesen & Horen and Schreiben & Sprechen (including 5.8)", "Chapter 5.9 - Schreiben & Sprechen"}},
		{"Week Eight", []string{"Chapter 6.10 - Schreiben & Sprechen (Intro to letter writing)", "Chapter 13 - Lesen & Horen and Chapter 6.11 - Schreiben & Sprechen", "Chapter 14.1 - Lesen & Horen and Chapter 7.12 - Schreiben & Sprechen"}},
		{"Week Nine", []string{"Chapter 14.2 - Lesen & Horen and Chapter 7.12 - Schreiben & Sprechen", "Chapter 8.13 - Schreiben & Sprechen"}},
	},
	"A2": {
		{"Woche 1", []string{"1.1. Small Talk (Exercise)", "1.2. Personen Beschreiben (Exercise)", "1.3. Dinge und Personen vergleichen"}},
		{"Woche 2", []string{"2.4. Wo möchten wir uns treffen?", "2.5. Was machst du in deiner Freizeit?"}},
		{"Woche 3", []string{"3.6. Möbel und Räume kennenlernen", "3.7. Eine Wohnung suchen (Übung)", "3.8. Rezepte und Essen (Exercise)"}},
		{"Woche 4", []string{"4.9. Urlaub", "4.10. Tourismus und Traditionelle Feste", "4.11. Unterwegs: Verkehrsmittel vergleichen"}},
		{"Woche 5", []string{"5.12. Ein Tag im Leben (Übung)", "5.13. Ein Vorstellungsgesprach (Exercise)", "5.14. Beruf und Karriere (Exercise)"}},
		{"Woche 6", []string{"6.15. Mein Lieblingssport", "6.16. Wohlbefinden und Entspannung", "6.17. In die Apotheke gehen"}},
		{"Woche 7", []string{"7.18. Die Bank Anrufen", "7.19. Einkaufen – Wo und wie? (Exercise)", "7.20. Typische Reklamationssituationen üben"}},
		{"Woche 8", []string{"8.21. Ein Wochenende planen", "8.22. Die Woche Plannung"}},
		{"Woche 9", []string{"9.23. Wie kommst du zur Schule / zur Arbeit?", "9.24. Einen Urlaub planen", "9.25. Tagesablauf (Exercise)"}},
		{"Woche 10", []string{"10.26. Gefühle in verschiedenen Situationen beschr", "10.27. Digitale Kommunikation", "10.28. Über die Zukunft sprechen"}},
	},
	"B1": {
		{"Woche 1", []string{"1.1. Traumwelten (Übung)", "1.2. Freundes für Leben (Übung)", "1.3. Erfolgsgeschichten (Übung)"}},
		{"Woche 2", []string{"2.4. Wohnung suchen (Übung)", "2.5. Der Besichtigungsg termin (Übung)", "2.6. Leben in der Stadt oder auf dem Land?"}},
		{"Woche 3", []string{"3.7. Fast Food vs. Hausmannskost", "3.8. Alles für die Gesundheit", "3.9. Work-Life-Balance im modernen Arbeitsumfeld"}},
		{"Woche 4", []string{"4.10. Digitale Auszeit und Selbstfürsorge", "4.11. Teamspiele und Kooperative Aktivitäten", "4.12. Abenteuer in der Natur", "4.13. Eigene Filmkritik schreiben"}},
		{"Woche 5", []string{"5.14. Traditionelles vs. digitales Lernen", "5.15. Medien und Arbeiten im Homeoffice", "5.16. Prüfungsangst und Stressbewältigung", "5.17. Wie lernt man am besten?"}},
		{"Woche 6", []string{"6.18. Wege zum Wunschberuf", "6.19. Das Vorstellungsgespräch", "6.20. Wie wird man …? (Ausbildung und Qu)"}},
		{"Woche 7", []string{"7.21. Lebensformen heute – Familie, Wohnge", "7.22. Was ist dir in einer Beziehung wichtig?", "7.23. Erstes Date – Typische Situationen"}},
		{"Woche 8", []string{"8.24. Konsum und Nachhaltigkeit", "8.25. Online einkaufen – Rechte und Risiken"}},
		{"Woche 9", []string{"9.26. Reiseprobleme und Lösungen"}},
		{"Woche 10", []string{"10.27. Umweltfreundlich im Alltag", "10.28. Klimafreundlich leben"}},
	},
}

// Levels lists the template levels in display order.
func Levels() []string { return []string{"A1", "A2", "B1"} }

// Template returns the weeks of level, nil when unknown.
func Template(level string) []Week { return templates[level] }
