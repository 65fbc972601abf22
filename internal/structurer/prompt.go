package structurer

import "fmt"

// buildPrompt embeds the extracted CV text and the candidate's GitHub
// projects into the structuring template.
func buildPrompt(extractedText, githubProjectsJSON string) string {
	return fmt.Sprintf(promptTemplate, extractedText, githubProjectsJSON)
}

// promptTemplate mandates a hierarchical JSON structure with Italian keys and
// values, enumerates the required and optional sections, and forbids invented
// data. The output of this prompt is parsed as JSON and pruned before
// persistence.
const promptTemplate = `As the world wide expert for ATS CV processing, follow these instructions:

### Guidelines:
- Respond in plain text containing only the structured output below.
- Ensure the output is in **valid JSON format**, with all keys and values correctly formatted.
- **Use a hierarchical JSON structure**, organizing the data in nested objects and arrays where appropriate.
- **Standardize the format** to ensure consistency across different CVs.
- **Extract all possible useful details** from the entire CV, leaving nothing relevant out. Capture every detail that provides insight into the candidate's profile.
- The JSON must have proper key-value pairs, with keys enclosed in double quotes.
- Ensure no extra commas, trailing commas, or syntax errors.
- **If a section is missing, skip it and do not include it in the output. Never return empty keys.**
- If the entire CV is empty, return an empty JSON object.

### WARNING: Never generate or invent fake information. The output must exactly reflect the original CV. These profiles are used to retrieve the most relevant candidate for a job description.

**Handling multi-page CVs**:
- Process the CV sequentially across pages, merging data from each page without duplication.
- Consolidate repetitive sections without losing details.

**Key sections to include** (adaptable to all profile types):

- "informazioni_personali": nome_completo, contatti (nested: email, telefoni, social_media), indirizzo (nested: indirizzo, città_residenza, cap, paese_residenza), nazionalità, data_nascita, titolo_professionale (required), posizione_interesse (required), seniority (required), disponibilità, link_github (skip if absent).
- "sommario_esecutivo": a comprehensive overview of core competencies, years of experience, key achievements, career goals, and unique strengths. Do not over-summarize.
- "approfondimenti_profilo": insights into skills, career progression, areas of expertise, leadership qualities, market alignment, unique skillset, and professional growth.
- "competenze_tecniche": list or nested object of languages, tools, frameworks, methodologies, with proficiency levels where stated.
- "esperienza_professionale": array of objects with azienda, ruolo, periodo, responsabilità, risultati.
- "formazione": titoli, istituzioni, date_laurea, argomenti_tesi, certificazioni, onorificenze.
- "lingue": array of objects with lingua, livello, conoscenza_specializzata.
- "progetti": only the top 4 most relevant projects; each with nome_progetto, descrizione, tecnologie_utilizzate, ruolo, impatto, link_repository (skip if absent).
- "informazioni_aggiuntive": hobbies, volunteer work, publications, awards, anything else relevant.

**Important notes**:
- All keys and values must be in **Italian**, including the keys themselves (e.g. "nome_completo": "Giuseppe Verdi").
- Do not include any additional comments.
- Skip any sections that are missing or incomplete.
- Use the provided CV content as the sole source of information.

### REMINDER WARNING: Never generate fake information; the output must exactly reflect the original CV.

**Input data**:
- Testo originale del CV: %s
- Progetti GitHub: %s

Ensure the output is complete, well-organized, hierarchical, and valid JSON, even if the CV spans multiple pages.`
