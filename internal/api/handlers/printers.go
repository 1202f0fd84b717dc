package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/posfleet/printpool/internal/core"
	"github.com/posfleet/printpool/internal/printer"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type PrinterRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name" binding:"required"`
	Type       string `json:"type" binding:"required,oneof=ethernet usb bluetooth"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	VendorID   string `json:"vendor_id"`
	ProductID  string `json:"product_id"`
	MACAddress string `json:"mac_address"`
	Enabled    *bool  `json:"enabled"`
	PrintWidth int    `json:"print_width"`
}

type PrinterResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IP            string `json:"ip,omitempty"`
	Port          int    `json:"port,omitempty"`
	VendorID      uint16 `json:"vendor_id,omitempty"`
	ProductID     uint16 `json:"product_id,omitempty"`
	MACAddress    string `json:"mac_address,omitempty"`
	Enabled       bool   `json:"enabled"`
	PrintWidth    int    `json:"print_width"`
	Status        string `json:"status"`
	JobsCompleted int64  `json:"jobs_completed"`
}

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type PrinterHandler struct {
	pool *core.Pool
}

func NewPrinterHandler(pool *core.Pool) *PrinterHandler {
	return &PrinterHandler{pool: pool}
}

// toConfig builds a printer.Config from the request. USB ids are accepted as
// hex or decimal strings.
func (r *PrinterRequest) toConfig() (printer.Config, error) {
	cfg := printer.Config{
		ID:         r.ID,
		Name:       r.Name,
		Type:       printer.TransportType(r.Type),
		Enabled:    true,
		PrintWidth: r.PrintWidth,
	}
	if r.Enabled != nil {
		cfg.Enabled = *r.Enabled
	}

	switch cfg.Type {
	case printer.TransportEthernet:
		cfg.Ethernet = &printer.EthernetParams{IP: r.IP, Port: r.Port}
	case printer.TransportUSB:
		vid, err := printer.ParseUSBID(r.VendorID)
		if err != nil {
			return printer.Config{}, err
		}
		pid, err := printer.ParseUSBID(r.ProductID)
		if err != nil {
			return printer.Config{}, err
		}
		cfg.USB = &printer.USBParams{VendorID: vid, ProductID: pid}
	case printer.TransportBluetooth:
		cfg.Bluetooth = &printer.BluetoothParams{MACAddress: r.MACAddress}
	}
	return cfg, nil
}

func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	entries := h.pool.Printers()

	responses := make([]PrinterResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, entryToResponse(e))
	}

	c.JSON(http.StatusOK, responses)
}

func (h *PrinterHandler) CreatePrinter(c *gin.Context) {
	var req PrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	cfg, err := req.toConfig()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	if !h.pool.AddPrinter(cfg) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "rejected",
			Message: "Printer config invalid or id already exists",
		})
		return
	}

	entry, err := h.pool.GetPrinter(cfg.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Printer vanished after creation",
		})
		return
	}
	c.JSON(http.StatusCreated, entryToResponse(entry))
}

func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	entry, err := h.pool.GetPrinter(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Printer not found",
		})
		return
	}

	c.JSON(http.StatusOK, entryToResponse(entry))
}

func (h *PrinterHandler) UpdatePrinter(c *gin.Context) {
	id := c.Param("id")

	var req PrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	cfg, err := req.toConfig()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if !h.pool.UpdatePrinter(id, cfg) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "rejected",
			Message: "Printer not found or config invalid",
		})
		return
	}

	entry, _ := h.pool.GetPrinter(id)
	c.JSON(http.StatusOK, entryToResponse(entry))
}

func (h *PrinterHandler) DeletePrinter(c *gin.Context) {
	h.pool.RemovePrinter(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *PrinterHandler) SetPrinterEnabled(c *gin.Context) {
	id := c.Param("id")

	var req SetEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if _, err := h.pool.GetPrinter(id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Printer not found",
		})
		return
	}

	h.pool.SetPrinterEnabled(id, *req.Enabled)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func entryToResponse(e core.Entry) PrinterResponse {
	resp := PrinterResponse{
		ID:            e.Config.ID,
		Name:          e.Config.Name,
		Type:          string(e.Config.Type),
		Enabled:       e.Config.Enabled,
		PrintWidth:    e.Config.PrintWidth,
		Status:        string(e.Status),
		JobsCompleted: e.JobsCompleted,
	}
	switch {
	case e.Config.Ethernet != nil:
		resp.IP = e.Config.Ethernet.IP
		resp.Port = e.Config.Ethernet.Port
	case e.Config.USB != nil:
		resp.VendorID = e.Config.USB.VendorID
		resp.ProductID = e.Config.USB.ProductID
	case e.Config.Bluetooth != nil:
		resp.MACAddress = e.Config.Bluetooth.MACAddress
	}
	return resp
}
