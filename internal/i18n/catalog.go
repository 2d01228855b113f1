package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. English text doubles as the key, so an English printer
// needs no catalog entries.
const (
	MsgMemory          = "Memory"
	MsgUptime          = "Uptime"
	MsgAvgCPUTemp      = "Avg CPU temp"
	MsgGatewayStatus   = "Gateway status:"
	MsgLoss            = "Loss"
	MsgLatency         = "Latency"
	MsgNetworkTraffic  = "Network traffic"
	MsgReceived        = "Received"
	MsgTransmitted     = "Transmitted"
	MsgHealthAlert     = "FIREWALL HEALTH ALERT"
	MsgStatusReport    = "Status report"
	MsgAllOperational  = "All monitored firewalls are operating normally."
	MsgNextCheckIn     = "Next check in"
	MsgMinutes         = "minutes"
	MsgCriticalError   = "CRITICAL ERROR IN THE MONITOR"
	MsgUnhandledError  = "An unhandled error occurred:"
	MsgCheckLogs       = "The monitor may have stopped. Check the logs."
	MsgPolicyChanged   = "Policy applied"
	MsgPolicyApplyFail = "Policy could not be applied"
)

var ptBR = map[string]string{
	MsgMemory:          "Memória",
	MsgUptime:          "Tempo Ligado",
	MsgAvgCPUTemp:      "Temp. Média CPU",
	MsgGatewayStatus:   "Status dos Gateways:",
	MsgLoss:            "Perda",
	MsgLatency:         "Latência",
	MsgNetworkTraffic:  "Tráfego de Rede",
	MsgReceived:        "Recebido",
	MsgTransmitted:     "Transmitido",
	MsgHealthAlert:     "ALERTA DE SAÚDE NO FIREWALL",
	MsgStatusReport:    "Relatório de Status",
	MsgAllOperational:  "Todos os firewalls monitorados estão operando normalmente.",
	MsgNextCheckIn:     "Próxima verificação em",
	MsgMinutes:         "minutos",
	MsgCriticalError:   "ERRO CRÍTICO NO MONITORAMENTO",
	MsgUnhandledError:  "Ocorreu um erro não tratado:",
	MsgCheckLogs:       "O monitoramento pode ter sido encerrado. Verifique os logs.",
	MsgPolicyChanged:   "Política aplicada",
	MsgPolicyApplyFail: "Não foi possível aplicar a política",
}

// CLI strings printed through NewCLIPrinter.
var ptBRCLI = map[string]string{
	"Configuration OK: %d instance(s), mode %s\n":   "Configuração OK: %d instância(s), modo %s\n",
	"Desired policy at %s: %s\n":                    "Política desejada em %s: %s\n",
	"Error: %v\n":                                   "Erro: %v\n",
	"%d of %d event(s) in the journal\n":            "%d de %d evento(s) no histórico\n",
	"No differences: alias %s already matches %s\n": "Sem diferenças: alias %s já corresponde a %s\n",
}

func init() {
	for key, msg := range ptBR {
		_ = message.SetString(language.BrazilianPortuguese, key, msg)
	}
	for key, msg := range ptBRCLI {
		_ = message.SetString(language.BrazilianPortuguese, key, msg)
	}
}

// Label returns the translation of key for tag. Labels never carry
// arguments, so numbers are never formatted by the locale.
func Label(p *message.Printer, key string) string {
	return p.Sprintf(key)
}
