package checklist

var defaultSections = []SectionInfo{
	{Number: 1, Key: "section1", Title: "PLANEJAMENTO E INTEGRAÇÃO DA EQUIPE"},
	{Number: 2, Key: "section2", Title: "PERMISSÃO DE TRABALHO"},
	{Number: 3, Key: "section3", Title: "MÁQUINAS E EQUIPAMENTOS"},
	{Number: 4, Key: "section4", Title: "MOVIMENTAÇÃO DE CARGAS"},
	{Number: 5, Key: "section5", Title: "EPIs"},
	{Number: 6, Key: "section6", Title: "SINALIZAÇÃO"},
	{Number: 7, Key: "section7", Title: "ESCAVAÇÕES"},
	{Number: 8, Key: "section8", Title: "PARECER FINAL"},
	{Number: 9, Key: "section9", Title: "REGISTRO FOTOGRÁFICO"},
}

var defaultQuestions = []Question{
	// Section 1
	{Key: "q1_equipe_integrada", Section: 1, Kind: KindChoice, Label: "A equipe presente na frente de serviço foi integrada?"},
	{Key: "q2_cracha_visivel", Section: 1, Kind: KindChoice, Label: "Todos os funcionários possuem crachá visível com nome e foto?"},
	{Key: "q3_lider_presente", Section: 1, Kind: KindChoice, Label: "O líder da equipe está presente na frente de serviço?"},
	{Key: "q4_pdst_elaborado", Section: 1, Kind: KindChoice, Label: "O PDST foi elaborado no local da atividade com a participação de todos?"},
	{Key: "q5_pdst_passos_adequados", Section: 1, Kind: KindChoice, Label: "O PDST possui número adequado de passos cobrindo toda as atividades?"},
	{Key: "q6_riscos_condizentes", Section: 1, Kind: KindChoice, Label: "Os Riscos ALTOS e MÉDIOS identificados estão condizentes com os passos?"},
	{Key: "q7_barreiras_controle", Section: 1, Kind: KindChoice, Label: "Para riscos altos, há barreiras de controle listadas (Exceto para deslocamento)?"},
	{Key: "q8_pdst_assinado", Section: 1, Kind: KindChoice, Label: "O formulário do PDST está datado e assinado pela equipe?"},
	{Key: "q9_lider_identificado", Section: 1, Kind: KindChoice, Label: "O líder da equipe está identificado no PDST?"},
	{Key: "q10_reuniao_pretrab", Section: 1, Kind: KindChoice, Label: "A Reunião de Pré-Trabalho foi conduzida com linguagem clara e envolvimento da equipe?"},
	{Key: "q11_foto_pdst", Section: 1, Kind: KindPhotoArray, Label: "Foto do PDST", ImageType: ImagePDSTFront, Caption: "Foto do PDST", MinPhotos: 1},

	// Section 2
	{Key: "q11_pt_emitida", Section: 2, Kind: KindChoice, Label: "Foi emitida PT antes do início da atividade para as atividades críticas?"},
	{Key: "q12_emitente_treinado", Section: 2, Kind: KindChoice, Label: "O emitente está treinado e com cadastro válido? (2 anos BRK / 1 ano terceiros)"},
	{Key: "q13_foto_pt", Section: 2, Kind: KindPhotoArray, Label: "Foto da Permissão de Trabalho", ImageType: ImagePTFront, Caption: "Foto da Permissão de Trabalho", Optional: true},

	// Section 3
	{Key: "q14_usa_equipamentos", Section: 3, Kind: KindChoice, Label: "A equipe utiliza equipamentos manuais (serra cliper; policorte; compactador)?"},
	{Key: "q14_equipamentos_lista", Section: 3, Number: 140, Kind: KindFreeText, ConditionalOn: "q14_usa_equipamentos", Label: "Quais equipamentos?"},
	{Key: "q14_1_inspecionados", Section: 3, Kind: KindChoice, ConditionalOn: "q14_usa_equipamentos", Label: "Os equipamentos foram inspecionados e liberadas pela área de Segurança do Trabalho?"},
	{Key: "q14_2_operador_treinado", Section: 3, Kind: KindChoice, ConditionalOn: "q14_usa_equipamentos", Label: "O operador do equipamento possui treinamento específico e dentro do prazo de validade?"},
	{Key: "q14_4_checklist_preuso", Section: 3, Kind: KindChoice, ConditionalOn: "q14_usa_equipamentos", Label: "Foi aplicado checklist de pré-uso do equipamento?"},
	{Key: "q14_5_combustivel_certificado", Section: 3, Kind: KindChoice, ConditionalOn: "q14_usa_equipamentos", Label: "O combustível utilizado é transportado em containers certificados pelo INMETRO?"},
	{Key: "q14_6_fds_disponivel", Section: 3, Kind: KindChoice, ConditionalOn: "q14_usa_equipamentos", Label: "A Ficha de Dados de Segurança (FDS) do produto químico está disponível na frente de serviço?"},
	{Key: "q14_7_transporte_seguro", Section: 3, Kind: KindChoice, ConditionalOn: "q14_usa_equipamentos", Label: "Os equipamentos são transportados em local seguro e bem amarrado, sem risco de queda?"},

	// Section 4
	{Key: "q15_usa_maquinas", Section: 4, Kind: KindChoice, Label: "A equipe utiliza máquinas para movimentação de materiais (retroescavadeira; munck)?"},
	{Key: "q15_maquinas_lista", Section: 4, Number: 150, Kind: KindFreeText, ConditionalOn: "q15_usa_maquinas", Label: "Quais máquinas?"},
	{Key: "q15_1_maquina_inspecionada", Section: 4, Kind: KindChoice, ConditionalOn: "q15_usa_maquinas", Label: "A máquina foi inspecionada e liberada pela área de Segurança do Trabalho?"},
	{Key: "q15_2_operador_treinado", Section: 4, Kind: KindChoice, ConditionalOn: "q15_usa_maquinas", Label: "O operador de máquina possui treinamento específico e dentro do prazo de validade?"},
	{Key: "q15_3_operador_cracha", Section: 4, Kind: KindChoice, ConditionalOn: "q15_usa_maquinas", Label: "O operador de máquina possui crachá de identificação constando a data de validade do ASO válido?"},
	{Key: "q15_4_checklist_maquina", Section: 4, Kind: KindChoice, ConditionalOn: "q15_usa_maquinas", Label: "Foi aplicado checklist de pré-uso da máquina?"},
	{Key: "q15_5_area_isolada", Section: 4, Kind: KindChoice, ConditionalOn: "q15_usa_maquinas", Label: "A área de movimentação de carga está isolada e livre do acesso de pessoas?"},
	{Key: "q15_6_acessorios_inspecionados", Section: 4, Kind: KindChoice, ConditionalOn: "q15_usa_maquinas", Label: "Acessórios de içamento foram inspecionados (FR.049)?"},
	{Key: "q15_7_cargas_guiadas", Section: 4, Kind: KindChoice, ConditionalOn: "q15_usa_maquinas", Label: "Cargas estão sendo guiadas com cordas/cabos (sem uso das mãos)?"},
	{Key: "q16_cunhas_disponiveis", Section: 4, Kind: KindChoice, Label: "Cunhas separadoras disponíveis para materiais com risco de prensamento?"},
	{Key: "q17_caminhoes_calcos", Section: 4, Kind: KindChoice, Label: "Caminhões/veículos pesados possuem 4 calços em uso?"},

	// Section 5
	{Key: "q18_uso_epi", Section: 5, Kind: KindChoice, Label: "Funcionário faz uso de todos os EPI, conforme risco da atividade?"},
	{Key: "q19_epi_adequado", Section: 5, Kind: KindChoice, Label: "EPIs adequados ao risco, em bom estado de conservação?"},
	{Key: "q20_bolsa_epi", Section: 5, Kind: KindChoice, Label: "O funcionário possui bolsa ou local adequado para transporte de EPI?"},
	{Key: "q21_lanterna_noturna", Section: 5, Kind: KindChoice, Label: "Funcionário possui lanterna de cabeça para atividades noturnas?"},

	// Section 6
	{Key: "q22_local_sinalizado", Section: 6, Kind: KindChoice, Label: "O local está bem sinalizado com Placas, cones, fitas zebradas etc., conforme PR.004.COR.TCR?"},
	{Key: "q23_veiculos_barreira", Section: 6, Kind: KindChoice, Label: "Veículos barreira posicionados corretamente?"},
	{Key: "q24_dispositivos_luminosos", Section: 6, Kind: KindChoice, Label: "Para atividades noturnas: dispositivos luminosos instalados?"},

	// Section 7
	{Key: "q25_escavacao_profunda", Section: 7, Kind: KindChoice, Label: "A escavação >1,25m de profundidade?"},
	{Key: "q25_profundidade", Section: 7, Number: 250, Kind: KindFreeText, ConditionalOn: "q25_escavacao_profunda", Optional: true, Numeric: true, Label: "Profundidade da escavação (m)"},
	{Key: "q25_1_escoramento", Section: 7, Kind: KindChoice, ConditionalOn: "q25_escavacao_profunda", Label: "Escoramento ou rampa de 45°?"},
	{Key: "q25_2_escadas_acesso", Section: 7, Kind: KindChoice, ConditionalOn: "q25_escavacao_profunda", Label: "Escadas ou rampas de acesso?"},
	{Key: "q26_materiais_distantes", Section: 7, Kind: KindChoice, Label: "Materiais distantes ≥1m das bordas?"},

	// Section 8
	{Key: "q27_equipe_consciente", Section: 8, Kind: KindChoice, Allowed: []Answer{AnswerYes, AnswerNo, AnswerPartial}, Label: "Equipe consciente dos riscos e atendendo às diretrizes de segurança?"},
	{Key: "q28_fortalecer_realizado", Section: 8, Kind: KindChoice, Label: "Foi realizado o FORTALECER com a equipe em campo?"},
	{Key: "q28_temas", Section: 8, Number: 280, Kind: KindFreeText, ConditionalOn: "q28_fortalecer_realizado", Label: "Quais temas foram abordados no FORTALECER?"},
	{Key: "q29_indicacao_fortalecer", Section: 8, Kind: KindChoice, Label: "Indicação de funcionários para participação no FORTALECER em sala?"},
	{Key: "q29_nomes", Section: 8, Number: 290, Kind: KindFreeText, ConditionalOn: "q29_indicacao_fortalecer", Label: "Indicar nomes dos funcionários"},
	{Key: "q30_paralisacao", Section: 8, Kind: KindChoice, Label: "Houve necessidade de paralização da atividade?"},
	{Key: "q31_nc_pendentes", Section: 8, Kind: KindChoice, Label: "Ficou não conformidades pendentes de correção?"},
	{Key: "q31_descricao_nc", Section: 8, Number: 310, Kind: KindFreeText, ConditionalOn: "q31_nc_pendentes", Label: "Descrever não conformidades pendentes"},

	// Section 9
	{Key: "fotos_gerais", Section: 9, Kind: KindPhotoArray, Label: "Registro fotográfico geral", ImageType: ImageGeneral, Caption: "Registro fotográfico geral", MinPhotos: 1},
}

// Default is the inspection checklist used by the service.
var Default = MustCatalog(defaultSections, defaultQuestions)
