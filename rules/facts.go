package rules

// ProcedureFacts holds the procedure fields the status rules read.
// Dates are kept as entered (DD/MM/YYYY, ISO or spreadsheet serial).
type ProcedureFacts struct {
	FinaliteConsultation               string `json:"finalite_consultation,omitempty"`
	DatePublicationDonneesEssentielles any    `json:"date_publication_donnees_essentielles,omitempty"`
	DateAvisAttribution                any    `json:"date_avis_attribution,omitempty"`
	TypeMarche                         string `json:"type_marche,omitempty"`
	StatutRapportPresentation          string `json:"statut_rapport_presentation,omitempty"`
	DateOuvertureOffres                any    `json:"date_ouverture_offres,omitempty"`
	DateRemiseOffres                   any    `json:"date_remise_offres,omitempty"`
	DatePublication                    any    `json:"date_publication,omitempty"`
	NumeroAfpaConsultation             string `json:"numero_afpa_consultation,omitempty"`
	RepriseAuStatutTermine             *bool  `json:"Reprise_au_statut_Termine,omitempty"`
}

// ToRecord converts the facts to a stored record, leaving out empty fields
func (f ProcedureFacts) ToRecord() Record {
	r := Record{}
	putString(r, "finalite_consultation", f.FinaliteConsultation)
	putValue(r, "date_publication_donnees_essentielles", f.DatePublicationDonneesEssentielles)
	putValue(r, "date_avis_attribution", f.DateAvisAttribution)
	putString(r, "type_marche", f.TypeMarche)
	putString(r, "statut_rapport_presentation", f.StatutRapportPresentation)
	putValue(r, "date_ouverture_offres", f.DateOuvertureOffres)
	putValue(r, "date_remise_offres", f.DateRemiseOffres)
	putValue(r, "date_publication", f.DatePublication)
	putString(r, "numero_afpa_consultation", f.NumeroAfpaConsultation)
	if f.RepriseAuStatutTermine != nil {
		r["Reprise_au_statut_Termine"] = *f.RepriseAuStatutTermine
	}
	return r
}

func putString(r Record, field, v string) {
	if v != "" {
		r[field] = v
	}
}

func putValue(r Record, field string, v any) {
	if v != nil {
		r[field] = v
	}
}
