package domain

// Return codes for automatic-debit return records (COD_RETORNO).
const (
	OutcomeDebited          = "00"
	OutcomeDebitedOtherDate = "31"
)

var outcomeDescriptions = map[string]string{
	"00": "Débito efetuado",
	"01": "Insuficiência de fundos",
	"02": "Conta corrente não cadastrada",
	"04": "Outras restrições",
	"05": "Valor do débito excede valor limite aprovado",
	"10": "Agência em regime de encerramento",
	"12": "Valor inválido",
	"13": "Data de lançamento inválida",
	"14": "Agência inválida",
	"15": "Banco inválido",
	"18": "Data do débito anterior à do processamento",
	"30": "Sem contrato de débito automático",
	"31": "Débito efetuado em data diferente da data informada",
	"96": "Manutenção do cadastro",
	"97": "Cancelamento - não encontrado",
	"98": "Cancelamento - não efetuado, fora do tempo hábil",
	"99": "Cancelamento - cancelado conforme solicitação",
}

// OutcomeDescription returns the bank's wording for a return code.
func OutcomeDescription(code string) string {
	if d, ok := outcomeDescriptions[code]; ok {
		return d
	}
	if code == "" {
		return "Sem retorno"
	}
	return "Código desconhecido"
}
