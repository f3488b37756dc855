package config

// KnownSources returns the default registry of recognized source identifiers
// (journal codes). It is the fallback for CorpusConfig.KnownSources when no
// config file or environment override supplies one; callers receive a fresh
// slice and may modify it freely.
func KnownSources() []string {
	return []string{
		"BDC", "CDV", "DLE", "EDA", "EXP", "IMP", "GDL", "JDF", "JDV",
		"LBP", "LCE", "LCG", "LCR", "LCS", "LES", "LNF", "LSE", "LSR",
		"LTF", "LVE", "EVT", "JDG", "LNQ", "NZZ",
		"FedGazDe", "FedGazFr", "FedGazIt",
		"arbeitgeber", "handelsztg", "actionfem", "armeteufel", "avenirgdl",
		"buergerbeamten", "courriergdl", "deletz1893", "demitock",
		"diekwochen", "dunioun", "gazgrdlux", "indeplux", "kommmit",
		"landwortbild", "lunion", "luxembourg1935", "luxland", "luxwort",
		"luxzeit1844", "luxzeit1858", "obermosel", "onsjongen", "schmiede",
		"tageblatt", "volkfreu1869", "waechtersauer", "waeschfra",
		"BLB", "BNN", "DFS", "DVF", "EZR", "FZG", "HRV", "LAB", "LLE",
		"MGS", "NTS", "NZG", "SGZ", "SRT", "WHD", "ZBT",
		"CON", "DTT", "FCT", "GAV", "GAZ", "LLS", "OIZ", "SAX", "SDT",
		"SMZ", "VDR", "VHT",
	}
}
